package insights

import (
	"fmt"
	"strings"

	"github.com/accountpulse/accountpulse/internal/account"
	"github.com/accountpulse/accountpulse/internal/scoring"
)

const systemPrompt = "You are a customer success analyst. You explain account health " +
	"scores that have already been computed. Never invent numbers: every figure you " +
	"mention must come from the scoring breakdown you are given. Write in plain prose " +
	"for a CSM preparing for a customer call."

// churnPrompt renders the computed breakdown so the model narrates the
// score instead of recomputing it.
func churnPrompt(acct *account.Account, result scoring.ScoreResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Account: %s (tier %s, ARR $%.0f)\n", acct.Name, acct.Tier, float64(acct.ARRCents)/100)
	fmt.Fprintf(&b, "Computed health score: %d/100, risk tier: %s\n\n", result.HealthScore, result.RiskTier)

	b.WriteString("Category breakdown (already computed, do not rescore):\n")
	for _, cat := range result.Categories {
		if !cat.Present {
			fmt.Fprintf(&b, "- %s: no data provided, contributed 0 of %.0f possible points\n",
				cat.Category, cat.Weight*100)
			continue
		}
		fmt.Fprintf(&b, "- %s: sub-score %.0f/100, weight %.0f%%, contributed %.1f points\n",
			cat.Category, cat.SubScore, cat.Weight*100, cat.Contribution)
	}

	b.WriteString("\nTop risk drivers:\n")
	for _, d := range result.Drivers {
		fmt.Fprintf(&b, "- %s\n", d)
	}

	b.WriteString("\nRecommended actions:\n")
	for _, r := range result.Recommendations {
		fmt.Fprintf(&b, "- %s\n", r)
	}

	b.WriteString("\nWrite a 3-4 sentence narrative summary of this account's health for the CSM. " +
		"Reference only the figures above.")
	return b.String()
}

func expansionPrompt(acct *account.Account, result scoring.ExpansionResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Account: %s (tier %s)\n", acct.Name, acct.Tier)
	fmt.Fprintf(&b, "Computed expansion score: %d/100, potential: %s\n\n", result.ExpansionScore, result.ExpansionPotential)

	b.WriteString("Category breakdown (already computed, do not rescore):\n")
	for _, cat := range result.Categories {
		fmt.Fprintf(&b, "- %s: %.0f of %.0f points\n", cat.Category, cat.Points, cat.Max)
	}

	if len(result.RecommendedProducts) > 0 {
		b.WriteString("\nRecommended products:\n")
		for _, p := range result.RecommendedProducts {
			fmt.Fprintf(&b, "- %s (%s priority): %s\n", p.Product, p.Priority, p.Reasoning)
		}
	}

	b.WriteString("\nWrite a 3-4 sentence expansion narrative for the account team. " +
		"Reference only the figures above.")
	return b.String()
}

// chatPrompt grounds a follow-up question in the account's stored data.
func chatPrompt(acct *account.Account, latest *account.Snapshot, history []account.Prediction, question string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Account: %s (status %s, tier %s)\n\n", acct.Name, acct.Status, acct.Tier)

	if latest != nil {
		b.WriteString("Latest metric snapshot:\n")
		fmt.Fprintf(&b, "%s\n\n", describeMetrics(latest.Metrics))
	}

	if len(history) > 0 {
		b.WriteString("Recent scoring runs (most recent first):\n")
		for i, p := range history {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- %s at %s: %s\n", p.Kind, p.CreatedAt.Format("2006-01-02"), string(p.Result))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question from the CSM: %s\n\n", question)
	b.WriteString("Answer using only the data above. If the data does not cover the question, say so.")
	return b.String()
}

func describeMetrics(m scoring.MetricSet) string {
	var parts []string
	if m.Usage30dChange != nil {
		parts = append(parts, fmt.Sprintf("usage 30d change %.0f%%", *m.Usage30dChange*100))
	}
	if m.ActiveUsers != nil && m.LicensedSeats != nil {
		parts = append(parts, fmt.Sprintf("%d of %d seats active", *m.ActiveUsers, *m.LicensedSeats))
	}
	if m.OpenCriticalTickets != nil {
		parts = append(parts, fmt.Sprintf("%d open critical tickets", *m.OpenCriticalTickets))
	}
	if m.CSATScoreCurrent != nil {
		parts = append(parts, fmt.Sprintf("CSAT %.1f", *m.CSATScoreCurrent))
	}
	if m.NPSCurrent != nil {
		parts = append(parts, fmt.Sprintf("NPS %d", *m.NPSCurrent))
	}
	if m.RenewalDaysOut != nil {
		parts = append(parts, fmt.Sprintf("renewal in %d days", *m.RenewalDaysOut))
	}
	if m.InvoicesOverdueCount != nil {
		parts = append(parts, fmt.Sprintf("%d overdue invoices", *m.InvoicesOverdueCount))
	}
	if len(parts) == 0 {
		return "no metrics recorded"
	}
	return strings.Join(parts, ", ")
}
