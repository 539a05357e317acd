package e2e

import "fmt"

// ResearchDoc is one knowledge-base entry in the E2E corpus.
type ResearchDoc struct {
	Title string
	Text  string
}

// BuildCorpus returns n research briefs with distinct content. Each brief is
// short enough to produce a single chunk, so a search with the exact brief
// text must rank its own document first regardless of embedding backend.
func BuildCorpus(n int) []ResearchDoc {
	briefs := []ResearchDoc{
		{"Subscription Pricing Brief", "Consumers push back on annual-only subscription plans. Monthly tiers with a visible cancel flow reduce churn complaints."},
		{"App Store Review Themes", "Top negative review themes this quarter are login friction, aggressive paywalls and notification spam."},
		{"Grocery Delivery Landscape", "Dark-store grocery delivery is consolidating. Fifteen-minute delivery promises have quietly become thirty."},
		{"Creator Economy Notes", "Mid-tier creators are shifting from ad revenue to direct memberships. Platform fee changes drive migration."},
		{"Fitness App Retention", "Fitness app retention cliffs at week three. Social accountability features flatten the cliff measurably."},
		{"BNPL Sentiment", "Buy-now-pay-later sentiment is souring among younger users citing surprise late fees and credit score impact."},
		{"Smart Home Friction", "Smart home buyers complain about hub fragmentation. Matter adoption is the most requested fix."},
		{"Meal Kit Fatigue", "Meal kit subscribers cite packaging waste and menu repetition as the top two cancellation reasons."},
		{"Gaming Monetization", "Battle pass fatigue is real. Players prefer cosmetic-only shops over progression-gated monetization."},
		{"EV Charging Anxiety", "Public charging reliability, not range, is now the leading barrier to EV purchase intent."},
		{"Streaming Bundle Demand", "Streaming subscribers want rebundling. Willingness to pay peaks at three services in one bill."},
		{"Secondhand Fashion", "Resale fashion platforms grow on authentication guarantees. Counterfeit anxiety is the main blocker."},
		{"Pet Care Spending", "Pet owners trade down on toys but not on food or preventive vet care during downturns."},
		{"Remote Work Tools", "Teams consolidate from five collaboration tools to two. Seat-based pricing is under pressure."},
		{"Travel Booking Trust", "Travelers abandon bookings over drip pricing. All-in upfront totals lift conversion."},
		{"Skincare Ingredient Literacy", "Shoppers increasingly search by ingredient, not brand. INCI-name literacy is rising fast."},
		{"Audio Hardware Upgrades", "Earbud upgrade cycles stretch past three years. Battery degradation is the main replacement trigger."},
		{"Language Learning Apps", "Streak mechanics retain but also burn out learners. Streak-freeze forgiveness reduces quits."},
		{"Home Fitness Equipment", "Connected fitness hardware resale volumes spike in January and September, mirroring resolution cycles."},
		{"Local Services Discovery", "Consumers pick local services on response speed over star rating once above four stars."},
	}
	out := make([]ResearchDoc, 0, n)
	for len(out) < n {
		i := len(out)
		doc := briefs[i%len(briefs)]
		if i >= len(briefs) {
			doc.Title = fmt.Sprintf("%s (%d)", doc.Title, i+1)
			doc.Text = fmt.Sprintf("%s Cohort %d.", doc.Text, i+1)
		}
		out = append(out, doc)
	}
	return out
}
