package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DefaultMute is the fallback mute length when the duration argument
// is absent or unparsable.
const DefaultMute = 3 * time.Hour

var durationRE = regexp.MustCompile(`^(\d+)([mhd])`)

// Parse accepts a leading integer followed by a unit letter: "30m",
// "2h", "7d". Anything else reports false.
func Parse(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	m := durationRE.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "m":
		return time.Duration(n) * time.Minute, true
	case "h":
		return time.Duration(n) * time.Hour, true
	case "d":
		return time.Duration(n) * 24 * time.Hour, true
	}
	return 0, false
}

// Pluralize picks the Slavic plural form by the numeral's last digits:
// one for 1 excluding 11, few for 2-4 excluding 12-14, many otherwise.
func Pluralize(n int, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	if n%10 == 1 && n%100 != 11 {
		return one
	}
	if n%10 >= 2 && n%10 <= 4 && !(n%100 >= 12 && n%100 <= 14) {
		return few
	}
	return many
}

// Display renders the duration with the coarsest unit that keeps the
// value at least 1, with a grammatically matching unit word.
func Display(d time.Duration) string {
	sec := int(d.Seconds())
	if sec < 60 {
		return fmt.Sprintf("%d сек", sec)
	}
	if sec < 3600 {
		m := sec / 60
		return fmt.Sprintf("%d %s", m, Pluralize(m, "минута", "минуты", "минут"))
	}
	if sec < 86400 {
		h := sec / 3600
		return fmt.Sprintf("%d %s", h, Pluralize(h, "час", "часа", "часов"))
	}
	days := sec / 86400
	return fmt.Sprintf("%d %s", days, Pluralize(days, "день", "дня", "дней"))
}
