package identity

import "github.com/nyaruka/phonenumbers"

// One representative zone per calling region. Countries spanning several
// zones get their most populous one; close enough for rendering local
// times in replies.
var regionZones = map[string]string{
	"AE": "Asia/Dubai",
	"AF": "Asia/Kabul",
	"AR": "America/Argentina/Buenos_Aires",
	"AT": "Europe/Vienna",
	"AU": "Australia/Sydney",
	"BD": "Asia/Dhaka",
	"BE": "Europe/Brussels",
	"BH": "Asia/Bahrain",
	"BR": "America/Sao_Paulo",
	"CA": "America/Toronto",
	"CH": "Europe/Zurich",
	"CL": "America/Santiago",
	"CN": "Asia/Shanghai",
	"CO": "America/Bogota",
	"CZ": "Europe/Prague",
	"DE": "Europe/Berlin",
	"DK": "Europe/Copenhagen",
	"DZ": "Africa/Algiers",
	"EG": "Africa/Cairo",
	"ES": "Europe/Madrid",
	"ET": "Africa/Addis_Ababa",
	"FI": "Europe/Helsinki",
	"FR": "Europe/Paris",
	"GB": "Europe/London",
	"GH": "Africa/Accra",
	"GR": "Europe/Athens",
	"HK": "Asia/Hong_Kong",
	"HU": "Europe/Budapest",
	"ID": "Asia/Jakarta",
	"IE": "Europe/Dublin",
	"IL": "Asia/Jerusalem",
	"IN": "Asia/Kolkata",
	"IQ": "Asia/Baghdad",
	"IR": "Asia/Tehran",
	"IT": "Europe/Rome",
	"JO": "Asia/Amman",
	"JP": "Asia/Tokyo",
	"KE": "Africa/Nairobi",
	"KH": "Asia/Phnom_Penh",
	"KR": "Asia/Seoul",
	"KW": "Asia/Kuwait",
	"LK": "Asia/Colombo",
	"MA": "Africa/Casablanca",
	"MM": "Asia/Yangon",
	"MX": "America/Mexico_City",
	"MY": "Asia/Kuala_Lumpur",
	"NG": "Africa/Lagos",
	"NL": "Europe/Amsterdam",
	"NO": "Europe/Oslo",
	"NP": "Asia/Kathmandu",
	"NZ": "Pacific/Auckland",
	"OM": "Asia/Muscat",
	"PE": "America/Lima",
	"PH": "Asia/Manila",
	"PK": "Asia/Karachi",
	"PL": "Europe/Warsaw",
	"PT": "Europe/Lisbon",
	"QA": "Asia/Qatar",
	"RO": "Europe/Bucharest",
	"RU": "Europe/Moscow",
	"SA": "Asia/Riyadh",
	"SE": "Europe/Stockholm",
	"SG": "Asia/Singapore",
	"TH": "Asia/Bangkok",
	"TN": "Africa/Tunis",
	"TR": "Europe/Istanbul",
	"TW": "Asia/Taipei",
	"TZ": "Africa/Dar_es_Salaam",
	"UA": "Europe/Kyiv",
	"UG": "Africa/Kampala",
	"US": "America/New_York",
	"VN": "Asia/Ho_Chi_Minh",
	"ZA": "Africa/Johannesburg",
}

// ZoneFor resolves the IANA zone for a sender's short id by reading it as
// an international phone number. Best-effort: any parse or lookup miss
// returns the empty string, never an error.
func ZoneFor(shortID string) string {
	if shortID == "" {
		return ""
	}
	num, err := phonenumbers.Parse("+"+shortID, "")
	if err != nil {
		return ""
	}
	region := phonenumbers.GetRegionCodeForNumber(num)
	return regionZones[region]
}
