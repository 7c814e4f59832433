// Command coupon-check validates a coupon offline and prints what a vendor
// should hand over. The conference defaults to REWARDS_CONFERENCE_ID; pass it
// as the second argument to override.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ILLUVRSE/pizza-rewards/internal/coupon"
	"github.com/ILLUVRSE/pizza-rewards/internal/service"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: coupon-check <code> [conference-id]\n")
		os.Exit(1)
	}
	conference := os.Getenv("REWARDS_CONFERENCE_ID")
	if len(os.Args) > 2 {
		conference = os.Args[2]
	}

	c, err := coupon.Parse(os.Args[1], conference)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid coupon (%s): %v\n", coupon.Reason(err), err)
		os.Exit(2)
	}

	out, err := json.MarshalIndent(service.Describe(c), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(append(out, '\n'))
}

