package generator

import (
	"bytes"
	"fmt"
)

// funcGenerator adapts a plain function into a Generator.
type funcGenerator struct {
	info Info
	fn   func(Request) ([]byte, error)
}

func (g funcGenerator) Info() Info { return g.info }

func (g funcGenerator) Generate(req Request) ([]byte, error) {
	return g.fn(req)
}

func builtin(id, name, description string, fn func(Request) ([]byte, error)) Factory {
	return func(Config) (Generator, error) {
		return funcGenerator{
			info: Info{ID: id, Name: name, Description: description, Version: "1.0.0"},
			fn:   fn,
		}, nil
	}
}

// RegisterBuiltins installs the stock content generators. Each produces
// deterministic placeholder copy from the plan's inputs; nothing here
// claims the content is good, only that it is reproducible.
func RegisterBuiltins(reg *Registry) {
	reg.MustRegister("business-brief", builtin("business-brief", "Business Brief",
		"One-page positioning brief for the business", generateBrief))
	reg.MustRegister("landing-page", builtin("landing-page", "Landing Page Copy",
		"Hero, benefits and call-to-action copy", generateLandingPage))
	reg.MustRegister("email-sequence", builtin("email-sequence", "Email Sequence",
		"Three-part introduction email sequence", generateEmailSequence))
	reg.MustRegister("social-posts", builtin("social-posts", "Social Posts",
		"Short announcement posts", generateSocialPosts))
	reg.MustRegister("faq", builtin("faq", "FAQ",
		"Frequently asked questions with placeholder answers", generateFAQ))
	reg.MustRegister("press-blurb", builtin("press-blurb", "Press Blurb",
		"Short third-person press paragraph", generatePressBlurb))
	reg.MustRegister("launch-checklist", builtin("launch-checklist", "Launch Checklist",
		"Operational checklist for going live", generateChecklist))
}

func heading(req Request, fallback string) string {
	if req.Step.Title != "" {
		return req.Step.Title
	}
	return fallback
}

func generateBrief(req Request) ([]byte, error) {
	business := req.InputOr("business_name", "the business")
	region := req.InputOr("city_region", "the local area")
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", heading(req, "Business Brief"))
	fmt.Fprintf(&buf, "%s serves %s.\n\n", business, region)
	fmt.Fprintf(&buf, "## Positioning\n\n%s is positioned as the dependable local choice in %s.\n\n", business, region)
	fmt.Fprintf(&buf, "## Audience\n\nCustomers in %s looking for a provider they can reach in person.\n", region)
	return buf.Bytes(), nil
}

func generateLandingPage(req Request) ([]byte, error) {
	business := req.InputOr("business_name", "the business")
	region := req.InputOr("city_region", "the local area")
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", heading(req, "Landing Page"))
	fmt.Fprintf(&buf, "## Hero\n\n%s: proudly serving %s.\n\n", business, region)
	buf.WriteString("## Benefits\n\n- Local and accountable\n- Clear, upfront pricing\n- Fast response times\n\n")
	fmt.Fprintf(&buf, "## Call to Action\n\nGet in touch with %s today.\n", business)
	return buf.Bytes(), nil
}

func generateEmailSequence(req Request) ([]byte, error) {
	business := req.InputOr("business_name", "the business")
	region := req.InputOr("city_region", "the local area")
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", heading(req, "Email Sequence"))
	for i, subject := range []string{
		fmt.Sprintf("Meet %s", business),
		fmt.Sprintf("Why %s chooses local", region),
		"Ready when you are",
	} {
		fmt.Fprintf(&buf, "## Email %d: %s\n\nHello,\n\n", i+1, subject)
		fmt.Fprintf(&buf, "A short note from %s in %s.\n\n", business, region)
	}
	return buf.Bytes(), nil
}

func generateSocialPosts(req Request) ([]byte, error) {
	business := req.InputOr("business_name", "the business")
	region := req.InputOr("city_region", "the local area")
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", heading(req, "Social Posts"))
	fmt.Fprintf(&buf, "1. %s is now serving %s.\n", business, region)
	fmt.Fprintf(&buf, "2. Looking for help in %s? %s has you covered.\n", region, business)
	fmt.Fprintf(&buf, "3. Support local: choose %s.\n", business)
	return buf.Bytes(), nil
}

func generateFAQ(req Request) ([]byte, error) {
	business := req.InputOr("business_name", "the business")
	region := req.InputOr("city_region", "the local area")
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", heading(req, "FAQ"))
	fmt.Fprintf(&buf, "**Where does %s operate?**\n\nThroughout %s.\n\n", business, region)
	fmt.Fprintf(&buf, "**How do I get a quote?**\n\nContact %s directly.\n\n", business)
	buf.WriteString("**What are the opening hours?**\n\nSee the latest listing for current hours.\n")
	return buf.Bytes(), nil
}

func generatePressBlurb(req Request) ([]byte, error) {
	business := req.InputOr("business_name", "the business")
	region := req.InputOr("city_region", "the local area")
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", heading(req, "Press Blurb"))
	fmt.Fprintf(&buf, "%s is a %s-based business focused on dependable local service.\n", business, region)
	return buf.Bytes(), nil
}

func generateChecklist(req Request) ([]byte, error) {
	business := req.InputOr("business_name", "the business")
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", heading(req, "Launch Checklist"))
	fmt.Fprintf(&buf, "- [ ] Confirm %s contact details\n", business)
	buf.WriteString("- [ ] Publish landing page\n- [ ] Schedule social posts\n- [ ] Send first email\n- [ ] Review FAQ answers\n")
	return buf.Bytes(), nil
}
