package devices

import (
	"net"
	"strings"
)

// DeviceInfo holds the coarse attributes parsed from a client signature.
// Fields left empty mean the signature did not match any known family.
type DeviceInfo struct {
	Browser string `bson:"browser,omitempty" json:"browser,omitempty"`
	OS      string `bson:"os,omitempty" json:"os,omitempty"`
	Device  string `bson:"device,omitempty" json:"device,omitempty"`
	Mobile  bool   `bson:"mobile" json:"mobile"`
}

// Ordered: more specific families first. Edge advertises "Edg" alongside
// "Chrome", and Chrome advertises "Safari", so order matters.
var browserRules = []struct{ token, name string }{
	{"Edg", "Edge"},
	{"OPR", "Opera"},
	{"Opera", "Opera"},
	{"SamsungBrowser", "Samsung Internet"},
	{"Firefox", "Firefox"},
	{"Chrome", "Chrome"},
	{"Safari", "Safari"},
	{"MSIE", "Internet Explorer"},
	{"Trident", "Internet Explorer"},
}

var osRules = []struct{ token, name string }{
	{"Windows", "Windows"},
	{"Android", "Android"},
	{"iPhone", "iOS"},
	{"iPad", "iOS"},
	{"Mac OS X", "macOS"},
	{"Macintosh", "macOS"},
	{"CrOS", "Chrome OS"},
	{"Linux", "Linux"},
}

var mobileTokens = []string{"Mobile", "Android", "iPhone", "iPad", "iPod", "Windows Phone"}

// Parse resolves a raw user agent into structured device attributes.
// Unmatched fields resolve to their zero values, never to an error.
func Parse(userAgent string) DeviceInfo {
	info := DeviceInfo{}
	if userAgent == "" {
		return info
	}

	for _, r := range browserRules {
		if strings.Contains(userAgent, r.token) {
			info.Browser = r.name
			break
		}
	}
	for _, r := range osRules {
		if strings.Contains(userAgent, r.token) {
			info.OS = r.name
			break
		}
	}
	for _, t := range mobileTokens {
		if strings.Contains(userAgent, t) {
			info.Mobile = true
			break
		}
	}

	switch {
	case strings.Contains(userAgent, "iPad"):
		info.Device = "Tablet"
	case info.Mobile:
		info.Device = "Mobile"
	default:
		info.Device = "Desktop"
	}

	return info
}

// locationTable is a static offline prefix table. Resolution must never
// reach the network, so coverage is limited to the ranges operations
// cares about; everything else resolves to unknown.
var locationTable = []struct {
	cidr     string
	location string
}{
	{"10.0.0.0/8", "Internal Network"},
	{"172.16.0.0/12", "Internal Network"},
	{"192.168.0.0/16", "Internal Network"},
	{"127.0.0.0/8", "Localhost"},
	{"203.0.113.0/24", "Sydney, Australia"},
	{"198.51.100.0/24", "Amsterdam, Netherlands"},
	{"192.0.2.0/24", "San Francisco, United States"},
}

var locationNets []struct {
	net      *net.IPNet
	location string
}

func init() {
	for _, e := range locationTable {
		_, n, err := net.ParseCIDR(e.cidr)
		if err != nil {
			continue
		}
		locationNets = append(locationNets, struct {
			net      *net.IPNet
			location string
		}{n, e.location})
	}
}

// Location resolves a coarse location string for a network address from
// the static table. Returns "" on miss or unparseable input.
func Location(addr string) string {
	ip := net.ParseIP(addr)
	if ip == nil {
		return ""
	}
	for _, e := range locationNets {
		if e.net.Contains(ip) {
			return e.location
		}
	}
	return ""
}
