// Maintenance toolkit for PSA Diagbox installations.
//
// The psadiag command downloads Diagbox release archives, extracts them onto
// the system drive with the bundled 7-Zip, installs the VCI driver and the
// runtime dependencies, and can remove an installation again. It keeps
// itself up to date through a small detached updater helper.
//
// The builder subpackage assembles the distributable binaries: it builds the
// updater helper, stages its artifacts, builds the main executable with icon
// and elevation manifest, embeds the resource payload, and deploys the
// result to the installation directory.
package psadiag
