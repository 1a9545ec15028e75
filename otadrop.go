/*
Package otadrop distributes ad hoc iOS builds to testers without going through
the App Store.

Given a signed .app bundle, otadrop:
  - validates the bundle metadata and its embedded provisioning profile
  - resolves a distribution signing identity and an ad hoc provisioning profile
  - packages the bundle into an .ipa with PackageApplication
  - uploads the .ipa and the app icon to Dropbox (or any blob bucket)
  - renders an OTA manifest and an install page and uploads them too

The last line written to stdout is the link to the install page.

# Usage

	otadrop MyApp.app                      # package, upload and print the link
	otadrop --check-only MyApp.app         # validate and resolve signing info only
	otadrop -q MyApp.app                   # print only the link
	otadrop init                           # write a default .otadrop.yaml
*/
package otadrop

// Version is the current version of otadrop
const Version = "1.0.0"

// BuildDate is set at build time
var BuildDate string

// GitCommit is set at build time
var GitCommit string
