package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// PageRange is a 1-indexed inclusive page interval.
type PageRange struct {
	Start int
	End   int
}

// PageRanges is an ordered page selection parsed from a string like
// "1-3,5,7-9".
type PageRanges []PageRange

// ParsePageRanges parses a comma-separated list of 1-indexed pages and
// inclusive ranges, validating every bound against the document's total
// page count.
func ParsePageRanges(pages string, total int) (PageRanges, error) {
	var ranges PageRanges
	for _, part := range strings.Split(pages, ",") {
		part = strings.TrimSpace(part)
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid page number in range: %s", part)
			}
			end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid page number in range: %s", part)
			}
			if start < 1 || end < 1 || start > total || end > total || start > end {
				return nil, fmt.Errorf("page range out of bounds: %s", part)
			}
			ranges = append(ranges, PageRange{Start: start, End: end})
		} else {
			page, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid page number: %s", part)
			}
			if page < 1 || page > total {
				return nil, fmt.Errorf("page number out of bounds: %d", page)
			}
			ranges = append(ranges, PageRange{Start: page, End: page})
		}
	}
	return ranges, nil
}

// Contains reports whether the 1-indexed page falls in any range.
func (r PageRanges) Contains(page int) bool {
	for _, pr := range r {
		if page >= pr.Start && page <= pr.End {
			return true
		}
	}
	return false
}

// String renders the selection back into the comma-separated form.
func (r PageRanges) String() string {
	parts := make([]string, len(r))
	for i, pr := range r {
		if pr.Start == pr.End {
			parts[i] = strconv.Itoa(pr.Start)
		} else {
			parts[i] = fmt.Sprintf("%d-%d", pr.Start, pr.End)
		}
	}
	return strings.Join(parts, ",")
}
