package sequencer

import "math"

// RatingInterval is how many in-sequence packets pass between rating
// evaluations.
const RatingInterval = 100

// Rating derives a quality score in [0, 10] from packet counts:
// 10 − 5 × lost/(received+lost), rounded to one decimal. No received packets
// rate 0.0.
func Rating(received, lost uint64) float64 {
	if received == 0 {
		return 0
	}
	loss := float64(lost) / float64(received+lost)
	r := 10 - 5*loss
	r = max(0, min(10, r))
	return math.Round(r*10) / 10
}

// dueForRating reports whether the rating is re-evaluated after a packet.
func dueForRating(received uint64) bool {
	return received > 0 && received%RatingInterval == 0
}
