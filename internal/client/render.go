package client

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/mohammed-shakir/restaurant-finder/internal/core/model"
)

const NoResults = "No restaurants found."

// Render writes the list as an aligned table, one place per row followed by
// its photo and directions links.
func Render(w io.Writer, center model.Coordinate, list []model.PlaceResult) error {
	if _, err := fmt.Fprintf(w, "Nearby Places: %s\n", center.Canonical()); err != nil {
		return err
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, NoResults)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tVICINITY\tRATING\tDISTANCE")
	for i, p := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, p.Name, p.Vicinity, rating(p), FormatDistance(p.Distance))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for i, p := range list {
		if p.Photo != nil {
			fmt.Fprintf(w, "[%d] photo: %s\n", i+1, *p.Photo)
		}
		if _, err := fmt.Fprintf(w, "[%d] directions: %s\n", i+1, p.Directions); err != nil {
			return err
		}
	}
	return nil
}

func rating(p model.PlaceResult) string {
	if p.Rating == nil {
		return "-"
	}
	return "★ " + strconv.FormatFloat(*p.Rating, 'f', -1, 64)
}

// FormatDistance prints meters below 1 km and kilometres with one decimal above.
func FormatDistance(m int) string {
	if m < 1000 {
		return strconv.Itoa(m) + " m"
	}
	return strconv.FormatFloat(float64(m)/1000, 'f', 1, 64) + " km"
}
