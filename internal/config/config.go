package config

const (
	DefaultTimeZone = "America/Maceio"
	DefaultHTTPAddr = ":8081"
	DateFormat      = "2006-01-02"

	// Amounts within this tolerance are treated as equal (centavo rounding).
	AmountTolerance = 0.01

	// Anticipation rate search. The seed is the typical rate charged by the
	// card processors the clinic works with, supplied by the business.
	DefaultSeedRate = 2.80
	RateStep        = 0.0001
	RateWindow      = 100
	RateFitEpsilon  = 0.0001

	// Balance recompute job runs nightly after the clinic closes.
	DefaultBalanceSchedule = "0 22 * * *"
)
