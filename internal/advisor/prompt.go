package advisor

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the recommendation prompt.
func BuildPrompt(subs []Subscription, t Totals) string {
	lines := make([]string, 0, len(subs))
	for _, s := range subs {
		lines = append(lines, fmt.Sprintf("Name: %s, Price: $%s, Billing: %s, Category: %s",
			s.Name, s.Price.String(), s.BillingCycle, s.Category))
	}

	var b strings.Builder
	b.WriteString("Analyze these subscriptions and provide structured recommendations to optimize spending.\n\n")
	b.WriteString("Subscriptions:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Total Monthly Spending: $%s\n", t.TotalMonthly.StringFixed(2))
	fmt.Fprintf(&b, "Total Yearly Spending: $%s\n", t.TotalYearly.StringFixed(2))
	fmt.Fprintf(&b, "Annualized Total: $%s\n\n", t.AnnualizedSpending.StringFixed(2))
	b.WriteString(responseSchema)
	return b.String()
}

const responseSchema = `Create a JSON response with the following structure:
{
  "overallScore": number, // A score from 1-10 rating the overall subscription efficiency (10 being perfect)
  "webAlternatives": [
    {
      "for": "Subscription name",
      "alternatives": [
        {
          "name": "Alternative service name",
          "savings": "Up to XX% less",
          "url": "website.com",
          "description": "Brief description of benefits"
        }
      ]
    }
  ],
  "categories": [
    {
      "title": "Redundancies and Overlaps",
      "score": number, // Score from 1-10 for this category
      "recommendations": [
        "Clear, specific recommendation 1",
        "Clear, specific recommendation 2"
      ]
    },
    {
      "title": "Cost-Saving Opportunities",
      "score": number,
      "recommendations": []
    },
    {
      "title": "Value Assessment",
      "score": number,
      "recommendations": []
    },
    {
      "title": "Consolidation Opportunities",
      "score": number,
      "recommendations": []
    }
  ]
}

For "webAlternatives":
- For each subscription with price > $20, suggest 1-3 real alternative services that might be cheaper
- Include realistic website domains, accurate pricing comparisons, and specific features
- Focus on free, open-source, or lower-cost alternatives when possible
- If a subscription is very niche or already optimal, you can skip it

Ensure each recommendation is specific, actionable, and directly related to the subscriptions provided.
The overallScore should reflect how well the user is optimizing their subscriptions.
Return only valid JSON with no additional text.
`
