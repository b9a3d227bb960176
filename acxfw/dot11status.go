package acxfw

// 802.11 management status codes, shortened.
var dot11StatusStr = [...]string{
	0:  "Successful",
	1:  "Unspecified failure",
	10: "Cannot support all requested capabilities in Capability Information field",
	11: "Reassoc denied (reason outside of 802.11b scope)",
	12: "Assoc denied (reason outside of 802.11b scope), maybe MAC filtering by peer?",
	13: "Responding station doesnt support specified auth algorithm",
	14: "Auth rejected: wrong transaction sequence number",
	15: "Auth rejected: challenge failure",
	16: "Auth rejected: timeout for next frame in sequence",
	17: "Assoc denied: too many STAs on this AP",
	18: "Assoc denied: requesting STA doesnt support all data rates in basic set",
	19: "Assoc denied: requesting STA doesnt support Short Preamble",
	20: "Assoc denied: requesting STA doesnt support PBCC Modulation",
	21: "Assoc denied: requesting STA doesnt support Channel Agility",
	25: "Assoc denied: requesting STA doesnt support Short Slot Time",
	26: "Assoc denied: requesting STA doesnt support DSSS-OFDM",
}

// Dot11StatusString returns a human readable description of an 802.11
// management frame status code.
func Dot11StatusString(status uint16) string {
	if int(status) < len(dot11StatusStr) && dot11StatusStr[status] != "" {
		return dot11StatusStr[status]
	}
	return "reserved"
}
