package utils

import "time"

// Beijing is the fixed UTC+8 zone all user-facing times are rendered in.
var Beijing = time.FixedZone("CST", 8*60*60)

const BeijingLayout = "2006-01-02 15:04"

func BeijingNow() time.Time {
	return time.Now().In(Beijing)
}

func ToBeijing(t time.Time) time.Time {
	return t.In(Beijing)
}

func FormatBeijing(t time.Time) string {
	return ToBeijing(t).Format(BeijingLayout)
}
