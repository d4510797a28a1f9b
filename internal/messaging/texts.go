package messaging

import "fmt"

// Replies sent to contributors.
const (
	ThanksText           = "Thanks for contributing to CrowdHydrology research and being a citizen scientist!"
	UnclearImageText     = "It seems that the image is not clear or is invalid. Please try again."
	InvalidStationText   = "The station label is invalid or not recognized. Please try again."
	InvalidGaugeText     = "The gauge reading is invalid or not recognized. Please try again."
	UnsupportedMediaText = "Unsupported image format. Please send a JPEG or PNG photo."
	ErrorText            = "An error occurred while processing your contribution. Please try again later."
)

// SMS format replies.
const (
	SMSUnreadableText     = "Whoopsies! We couldn't read your measurement properly.\n Format: NY1000 2.5"
	SMSUnknownStationText = "Whoopsies! We couldn't find a station with that ID.\n Format: NY1000 2.5"
	SMSTemperatureText    = "Whoopsies! That temperature measurement is out of bounds!\n\n " +
		"Please re-submit with a valid temperature measurement. \n Format: NY1000 2.5 80.0"
	SMSWaterHeightText = "Whoopsies! That water height measurement is out of bounds!\n\n " +
		"Please re-submit with a valid water height measurement. \n Format: NY1000 2.5"
)

// ChartURL is the public chart for a station.
func ChartURL(stationID string) string {
	return fmt.Sprintf("http://crowdhydrology.com/charts/%s_dygraph.html", stationID)
}

// AcceptedText is the reply for an accepted photo reading.
func AcceptedText(stationID string, height float64) string {
	return fmt.Sprintf("%s\n\nStation %s: water height %.2f recorded.\n%s",
		ThanksText, stationID, height, ChartURL(stationID))
}

// SMSAcceptedText is the reply for an accepted text contribution.
func SMSAcceptedText(stationID string) string {
	return ThanksText + "\n\nCheck out the contributions at your station: " + ChartURL(stationID)
}
