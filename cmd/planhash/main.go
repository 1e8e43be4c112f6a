// cmd/planhash/main.go
//
// Standalone hash utility: prints the canonical whitelist-based digest of
// a plan file to stdout for offline comparison or signing. This is the
// tool that produces the value later embedded as attestation.plan_hash.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/planseal/planseal/internal/attest"
	"github.com/planseal/planseal/internal/plan"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: planhash <plan.json>\n\nPrints the %s digest of the plan.\n", attest.ContractV1)
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	p, err := plan.Load(flag.Arg(0))
	if err != nil {
		die("load plan: %v", err)
	}
	digest, err := attest.ExpectedHash(p)
	if err != nil {
		die("compute digest: %v", err)
	}
	fmt.Println(digest)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
