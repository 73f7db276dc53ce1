package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildContextualQuery_EmptyContextReturnsQuery(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "explain my results", BuildContextualQuery("explain my results", nil))
	assert.Equal(t, "explain my results", BuildContextualQuery("explain my results", map[string]any{}))
}

func TestBuildContextualQuery_UnknownPageReturnsQuery(t *testing.T) {
	t.Parallel()

	got := BuildContextualQuery("explain", map[string]any{"page": "unheard_of"})
	assert.Equal(t, "explain", got)
}

func TestBuildContextualQuery_MonteCarlo(t *testing.T) {
	t.Parallel()

	got := BuildContextualQuery("what do my results mean?", map[string]any{
		"page":               "monte_carlo",
		"initial_portfolio":  float64(1500000),
		"currency":           "GBP",
		"num_simulations":    float64(5000),
		"inflation_rate_pct": 2.5,
		"simulations": map[string]any{
			"balanced": map[string]any{
				"name":                      "balanced",
				"duration_years":            float64(20),
				"annual_return_pct":         float64(6),
				"annual_risk_pct":           float64(10),
				"percentile_5th":            float64(900000),
				"percentile_50th":           float64(2400000),
				"percentile_95th":           float64(5100000),
				"prob_outperform_inflation": 82.4,
				"prob_loss_50pct":           1.2,
			},
		},
	})

	assert.Contains(t, got, "USER'S CURRENT MONTE CARLO SIMULATION RESULTS:")
	assert.Contains(t, got, "Initial Portfolio: £1,500,000")
	assert.Contains(t, got, "Number of Simulations: 5,000")
	assert.Contains(t, got, "Inflation Rate: 2.5%")
	assert.Contains(t, got, "BALANCED (20 years, 6% return, 10% risk):")
	assert.Contains(t, got, "5th Percentile (pessimistic): £900,000")
	assert.Contains(t, got, "Probability of outperforming inflation: 82.4%")
	assert.True(t, strings.HasSuffix(got, "USER QUESTION: what do my results mean?"))
}

func TestBuildContextualQuery_MonteCarloUnknownCurrencyDefaultsToDollar(t *testing.T) {
	t.Parallel()

	got := BuildContextualQuery("q", map[string]any{
		"page":              "monte_carlo",
		"currency":          "JPY",
		"initial_portfolio": float64(100),
	})
	assert.Contains(t, got, "Initial Portfolio: $100")
}

func TestBuildContextualQuery_RiskAnalytics(t *testing.T) {
	t.Parallel()

	got := BuildContextualQuery("why is my tracking error high?", map[string]any{
		"page":                     "risk_analytics",
		"portfolio_name":           "Growth Mix",
		"benchmark_name":           "MSCI World",
		"portfolio_volatility_pct": 14.25,
		"tracking_error_pct":       3.41,
		"total_beta":               1.032,
		"top_risk_contributors": []any{
			map[string]any{"security": "NVDA", "contribution_pct": 4.55},
			map[string]any{"security": "MSFT", "contribution_pct": 3.12},
		},
	})

	assert.Contains(t, got, "USER'S CURRENT RISK ANALYTICS RESULTS:")
	assert.Contains(t, got, "Portfolio: Growth Mix")
	assert.Contains(t, got, "Benchmark: MSCI World")
	assert.Contains(t, got, "Portfolio Volatility: 14.25%")
	assert.Contains(t, got, "Tracking Error: 3.41%")
	assert.Contains(t, got, "Total Beta: 1.032")
	assert.Contains(t, got, "1. NVDA: 4.55%")
	assert.Contains(t, got, "2. MSFT: 3.12%")
	assert.True(t, strings.HasSuffix(got, "USER QUESTION: why is my tracking error high?"))
}

func TestBuildContextualQuery_RiskContributorsCappedAtFive(t *testing.T) {
	t.Parallel()

	var contributors []any
	for i := 0; i < 8; i++ {
		contributors = append(contributors, map[string]any{"security": "S", "contribution_pct": 1.0})
	}
	got := BuildContextualQuery("q", map[string]any{
		"page":                  "risk_analytics",
		"top_risk_contributors": contributors,
	})

	assert.Contains(t, got, "  5. S: 1.00%")
	assert.NotContains(t, got, "  6. S")
}

func TestBuildContextualQuery_PortfolioEvaluation(t *testing.T) {
	t.Parallel()

	got := BuildContextualQuery("is this allocation sensible?", map[string]any{
		"page":          "portfolio_evaluation",
		"caps_template": "conservative",
		"frontier_summaries": map[string]any{
			"core": map[string]any{
				"name":               "core",
				"min_risk_pct":       5.1,
				"max_risk_pct":       18.4,
				"min_return_pct":     3.2,
				"max_return_pct":     9.7,
				"optimal_sharpe":     0.843,
				"optimal_return_pct": 7.25,
				"optimal_risk_pct":   11.6,
			},
		},
		"optimal_allocation": map[string]any{
			"Global Equity": 55.2,
			"Private Debt":  12.4,
			"Cash":          0.05, // 低于 0.1% 的配置不展示
		},
		"benchmark": map[string]any{"return": 0.065, "risk": 0.12},
	})

	assert.Contains(t, got, "Constraints Template: CONSERVATIVE")
	assert.Contains(t, got, "CORE FRONTIER:")
	assert.Contains(t, got, "Risk Range: 5.10% to 18.40%")
	assert.Contains(t, got, "Optimal Sharpe Ratio: 0.843")
	assert.Contains(t, got, "Optimal Point: 7.25% return at 11.60% risk")
	assert.Contains(t, got, "- Global Equity: 55.2%")
	assert.Contains(t, got, "- Private Debt: 12.4%")
	assert.NotContains(t, got, "Cash")
	assert.Contains(t, got, "Benchmark Return: 6.50%")
	assert.Contains(t, got, "Benchmark Risk: 12.00%")

	// 权重降序排列。
	assert.Less(t, strings.Index(got, "Global Equity"), strings.Index(got, "Private Debt"))
}

func TestFormatCurrency_RoundsAndGroups(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "$1,234,568", formatCurrency(1234567.8, "$"))
	assert.Equal(t, "€0", formatCurrency(0.2, "€"))
}
