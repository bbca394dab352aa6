// Package devices reads the catalog of video capture devices and normalizes
// their metadata.
//
// Identity is the device ID. Labels are free text that may be empty (many
// platforms withhold them before permission is granted), localized, or vendor
// specific, so facing is only ever inferred from them. On Linux the catalog is
// read from sysfs via the udev crawler and kept fresh by a netlink hotplug
// monitor; the browser bridge supplies its own list through StaticCatalog.
package devices
