package flightdata

import (
	"strings"
	"unicode"
)

// Regional and codeshare carriers operating on behalf of the mainline
// carrier. Vendors report the operating carrier's designator; schedules are
// stored under the marketing code so data from different vendors is
// comparable. Covers both IATA (2-letter) and ICAO (3-letter) prefixes.
var regionalCarrierCodes = map[string]string{
	// SkyWest
	"OO":  "UA",
	"SKW": "UA",
	// Republic
	"YX":  "UA",
	"RPA": "UA",
	// Mesa
	"YV":  "UA",
	"ASH": "UA",
	// GoJet
	"G7":  "UA",
	"GJS": "UA",
	// CommuteAir
	"C5":  "UA",
	"UCA": "UA",
	// Air Wisconsin
	"ZW":  "UA",
	"AWI": "UA",
	// Express brand designator some feeds use directly
	"UAX": "UA",
}

// NormalizeFlightNumber rewrites a regional or codeshare carrier designator
// to the primary carrier's marketing code. Unrecognized designators are
// returned unchanged, as is anything that doesn't parse as a flight number.
func NormalizeFlightNumber(flightNumber string) string {
	// Some feeds separate the designator from the number ("OO 5331").
	flightNumber = strings.ToUpper(strings.ReplaceAll(flightNumber, " ", ""))

	split := 0
	for split < len(flightNumber) && unicode.IsLetter(rune(flightNumber[split])) {
		split++
	}
	if split == 0 || split == len(flightNumber) {
		return flightNumber
	}

	prefix, digits := flightNumber[:split], flightNumber[split:]
	if marketing, ok := regionalCarrierCodes[prefix]; ok {
		return marketing + digits
	}
	return flightNumber
}
