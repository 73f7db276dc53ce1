package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// currencySymbols 支持的货币符号。未知货币回落到美元符号。
var currencySymbols = map[string]string{
	"USD": "$",
	"GBP": "£",
	"EUR": "€",
}

// BuildContextualQuery 把用户在应用内算出的结果注入查询文本，
// 将"解释我的结果"这类泛问改写为携带具体数字的解读请求。
// app_context 为空或 page 未知时原样返回查询。
func BuildContextualQuery(query string, appContext map[string]any) string {
	if len(appContext) == 0 {
		return query
	}

	switch ctxString(appContext, "page") {
	case "monte_carlo":
		return monteCarloQuery(query, appContext)
	case "risk_analytics":
		return riskAnalyticsQuery(query, appContext)
	case "portfolio_evaluation":
		return portfolioEvaluationQuery(query, appContext)
	default:
		return query
	}
}

func monteCarloQuery(query string, appContext map[string]any) string {
	symbol, ok := currencySymbols[ctxString(appContext, "currency")]
	if !ok {
		symbol = "$"
	}

	var b strings.Builder
	b.WriteString("\nUSER'S CURRENT MONTE CARLO SIMULATION RESULTS:\n")
	b.WriteString("===============================================\n")
	fmt.Fprintf(&b, "Initial Portfolio: %s\n", formatCurrency(ctxFloat(appContext, "initial_portfolio"), symbol))
	fmt.Fprintf(&b, "Number of Simulations: %s\n", humanize.Comma(int64(ctxFloat(appContext, "num_simulations"))))
	fmt.Fprintf(&b, "Inflation Rate: %.1f%%\n", ctxFloat(appContext, "inflation_rate_pct"))

	sims := ctxMap(appContext, "simulations")
	for _, key := range sortedKeys(sims) {
		sim, ok := sims[key].(map[string]any)
		if !ok || len(sim) == 0 {
			continue
		}
		name := ctxString(sim, "name")
		if name == "" {
			name = key
		}
		fmt.Fprintf(&b, "\n%s (%.0f years, %g%% return, %g%% risk):\n",
			strings.ToUpper(name),
			ctxFloat(sim, "duration_years"),
			ctxFloat(sim, "annual_return_pct"),
			ctxFloat(sim, "annual_risk_pct"))
		fmt.Fprintf(&b, "  - 5th Percentile (pessimistic): %s\n", formatCurrency(ctxFloat(sim, "percentile_5th"), symbol))
		fmt.Fprintf(&b, "  - 50th Percentile (median): %s\n", formatCurrency(ctxFloat(sim, "percentile_50th"), symbol))
		fmt.Fprintf(&b, "  - 95th Percentile (optimistic): %s\n", formatCurrency(ctxFloat(sim, "percentile_95th"), symbol))
		fmt.Fprintf(&b, "  - Probability of outperforming inflation: %.1f%%\n", ctxFloat(sim, "prob_outperform_inflation"))
		fmt.Fprintf(&b, "  - Probability of >50%% loss: %.1f%%\n", ctxFloat(sim, "prob_loss_50pct"))
	}

	fmt.Fprintf(&b, "\nUSER QUESTION: %s", query)
	return b.String()
}

func riskAnalyticsQuery(query string, appContext map[string]any) string {
	var b strings.Builder
	b.WriteString("\nUSER'S CURRENT RISK ANALYTICS RESULTS:\n")
	b.WriteString("======================================\n")
	fmt.Fprintf(&b, "Portfolio: %s\n", ctxStringDefault(appContext, "portfolio_name", "N/A"))
	fmt.Fprintf(&b, "Benchmark: %s\n", ctxStringDefault(appContext, "benchmark_name", "N/A"))

	b.WriteString("\nKEY METRICS:\n")
	fmt.Fprintf(&b, "- Portfolio Volatility: %.2f%%\n", ctxFloat(appContext, "portfolio_volatility_pct"))
	fmt.Fprintf(&b, "- Benchmark Volatility: %.2f%%\n", ctxFloat(appContext, "benchmark_volatility_pct"))
	fmt.Fprintf(&b, "- Tracking Error: %.2f%%\n", ctxFloat(appContext, "tracking_error_pct"))
	fmt.Fprintf(&b, "- Factor Explained: %.1f%%\n", ctxFloat(appContext, "factor_explained_pct"))
	fmt.Fprintf(&b, "- Idiosyncratic Risk: %.1f%%\n", ctxFloat(appContext, "idiosyncratic_pct"))

	b.WriteString("\nPERFORMANCE:\n")
	fmt.Fprintf(&b, "- Portfolio CAGR: %.2f%%\n", ctxFloat(appContext, "portfolio_cagr_pct"))
	fmt.Fprintf(&b, "- Benchmark CAGR: %.2f%%\n", ctxFloat(appContext, "benchmark_cagr_pct"))
	fmt.Fprintf(&b, "- Portfolio Sharpe Ratio: %.2f\n", ctxFloat(appContext, "portfolio_sharpe"))
	fmt.Fprintf(&b, "- Benchmark Sharpe Ratio: %.2f\n", ctxFloat(appContext, "benchmark_sharpe"))
	fmt.Fprintf(&b, "- Portfolio Max Drawdown: %.2f%%\n", ctxFloat(appContext, "portfolio_max_dd_pct"))

	b.WriteString("\nBETA ANALYSIS:\n")
	fmt.Fprintf(&b, "- Total Beta: %.3f\n", ctxFloat(appContext, "total_beta"))
	fmt.Fprintf(&b, "- Growth Beta: %.3f\n", ctxFloat(appContext, "growth_beta"))
	fmt.Fprintf(&b, "- Defensive Beta: %.3f\n", ctxFloat(appContext, "defensive_beta"))

	b.WriteString("\nDIVERSIFICATION:\n")
	fmt.Fprintf(&b, "- Average Correlation: %.2f\n", ctxFloat(appContext, "avg_correlation"))
	fmt.Fprintf(&b, "- Effective N (diversification): %.1f\n", ctxFloat(appContext, "effective_n"))
	fmt.Fprintf(&b, "- Top 5 Concentration: %.1f%%\n", ctxFloat(appContext, "concentration_ratio"))

	if contributors := ctxSlice(appContext, "top_risk_contributors"); len(contributors) > 0 {
		b.WriteString("\nTOP RISK CONTRIBUTORS:\n")
		for i, raw := range contributors {
			if i >= 5 {
				break
			}
			contrib, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "  %d. %s: %.2f%%\n", i+1,
				ctxStringDefault(contrib, "security", "N/A"),
				ctxFloat(contrib, "contribution_pct"))
		}
	}

	fmt.Fprintf(&b, "\nUSER QUESTION: %s", query)
	return b.String()
}

func portfolioEvaluationQuery(query string, appContext map[string]any) string {
	var b strings.Builder
	b.WriteString("\nUSER'S CURRENT PORTFOLIO OPTIMIZATION RESULTS:\n")
	b.WriteString("===============================================\n")
	fmt.Fprintf(&b, "Constraints Template: %s\n",
		strings.ToUpper(ctxStringDefault(appContext, "caps_template", "standard")))

	frontiers := ctxMap(appContext, "frontier_summaries")
	for _, key := range sortedKeys(frontiers) {
		summary, ok := frontiers[key].(map[string]any)
		if !ok || len(summary) == 0 {
			continue
		}
		name := ctxString(summary, "name")
		if name == "" {
			name = key
		}
		fmt.Fprintf(&b, "\n%s FRONTIER:\n", strings.ToUpper(name))
		fmt.Fprintf(&b, "  - Risk Range: %.2f%% to %.2f%%\n",
			ctxFloat(summary, "min_risk_pct"), ctxFloat(summary, "max_risk_pct"))
		fmt.Fprintf(&b, "  - Return Range: %.2f%% to %.2f%%\n",
			ctxFloat(summary, "min_return_pct"), ctxFloat(summary, "max_return_pct"))
		fmt.Fprintf(&b, "  - Optimal Sharpe Ratio: %.3f\n", ctxFloat(summary, "optimal_sharpe"))
		fmt.Fprintf(&b, "  - Optimal Point: %.2f%% return at %.2f%% risk\n",
			ctxFloat(summary, "optimal_return_pct"), ctxFloat(summary, "optimal_risk_pct"))
	}

	if alloc := ctxMap(appContext, "optimal_allocation"); len(alloc) > 0 {
		b.WriteString("\nOPTIMAL ALLOCATION (Core + Private Frontier):\n")
		type weighted struct {
			asset  string
			weight float64
		}
		entries := make([]weighted, 0, len(alloc))
		for asset := range alloc {
			entries = append(entries, weighted{asset, ctxFloat(alloc, asset)})
		}
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].weight > entries[j].weight })
		for _, e := range entries {
			if e.weight > 0.1 {
				fmt.Fprintf(&b, "  - %s: %.1f%%\n", e.asset, e.weight)
			}
		}
	}

	if benchmark := ctxMap(appContext, "benchmark"); benchmark != nil {
		if _, hasReturn := benchmark["return"]; hasReturn {
			if _, hasRisk := benchmark["risk"]; hasRisk {
				b.WriteString("\nBENCHMARK COMPARISON:\n")
				fmt.Fprintf(&b, "  - Benchmark Return: %.2f%%\n", ctxFloat(benchmark, "return")*100)
				fmt.Fprintf(&b, "  - Benchmark Risk: %.2f%%\n", ctxFloat(benchmark, "risk")*100)
			}
		}
	}

	fmt.Fprintf(&b, "\nUSER QUESTION: %s", query)
	return b.String()
}

// formatCurrency 千分位货币格式，四舍五入到整数。
func formatCurrency(value float64, symbol string) string {
	return symbol + humanize.Comma(int64(math.Round(value)))
}

func ctxString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func ctxStringDefault(m map[string]any, key, fallback string) string {
	if s := ctxString(m, key); s != "" {
		return s
	}
	return fallback
}

// ctxFloat 读取数值字段。JSON 解码出的数字统一是 float64，
// 但也接受测试中直接构造的 int。
func ctxFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func ctxMap(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func ctxSlice(m map[string]any, key string) []any {
	v, _ := m[key].([]any)
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
