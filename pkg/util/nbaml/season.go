package nbaml

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/richard-senior/nbaml/pkg/util"
)

// ParseSeason normalises a season label to the "YYYY-YY" form the stats API uses.
// Accepts 2023-24, 2023/24, 2023-2024, 2023/2024 and the compact key 202324.
func ParseSeason(season any) (string, error) {
	if season == nil {
		return "", fmt.Errorf("must pass a season")
	}
	ss, err := util.GetAsString(season)
	if err != nil {
		return "", err
	}
	ss = strings.TrimSpace(ss)

	var first, second string
	switch {
	case len(ss) == 7 && (ss[4] == '-' || ss[4] == '/'):
		first, second = ss[:4], ss[5:]
	case len(ss) == 9 && (ss[4] == '-' || ss[4] == '/'):
		first, second = ss[:4], ss[7:]
	case len(ss) == 6:
		first, second = ss[:4], ss[4:]
	default:
		return "", fmt.Errorf("invalid season format: %s", ss)
	}

	y1, err := strconv.Atoi(first)
	if err != nil {
		return "", fmt.Errorf("invalid season format: %s", ss)
	}
	y2, err := strconv.Atoi(second)
	if err != nil {
		return "", fmt.Errorf("invalid season format: %s", ss)
	}
	if (y1+1)%100 != y2 {
		return "", fmt.Errorf("season %s does not span consecutive years", ss)
	}
	return fmt.Sprintf("%04d-%02d", y1, y2), nil
}

// SeasonKey strips the delimiter, so "2023-24" becomes "202324".
// Used for file names. Unparseable input is returned without its delimiters.
func SeasonKey(season string) string {
	if s, err := ParseSeason(season); err == nil {
		season = s
	}
	return strings.NewReplacer("-", "", "/", "").Replace(season)
}

// FirstYear returns the calendar year a season starts in
func FirstYear(season string) (int, error) {
	s, err := ParseSeason(season)
	if err != nil {
		return 0, err
	}
	return util.GetAsInteger(s[:4])
}
