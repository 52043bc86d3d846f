package builder

import (
	"fmt"
	"time"
)

// FormatElapsed renders d as "HH:MM:SS", "MM:SS" or "Ns" depending on its
// magnitude. Negative durations render as "--:--:--".
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		return "--:--:--"
	}

	secs := int(d / time.Second)
	hours, rem := secs/3600, secs%3600
	minutes, secs := rem/60, rem%60

	switch {
	case hours > 0:
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	case minutes > 0:
		return fmt.Sprintf("%02d:%02d", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
