package skill

// Built-in skill names.
const (
	ProductExpert            = "product_expert"
	SalesAnalyst             = "sales_analyst"
	InventoryAnalyst         = "inventory_analyst"
	InsightsAdvisor          = "insights_advisor"
	DealerAnalyst            = "dealer_analyst"
	ForecastAnalyst          = "forecast_analyst"
	TrendAnalyst             = "trend_analyst"
	ReplenishmentCoordinator = "replenishment_coordinator"
)

// Builtins returns the default analytics skill set in registration order.
func Builtins() []Skill {
	return []Skill{
		productSkill(),
		salesSkill(),
		inventorySkill(),
		insightsSkill(),
		dealerSkill(),
		forecastSkill(),
		trendSkill(),
		NewReplenishment(),
	}
}

func productSkill() Skill {
	return MustNew(Definition{
		Name:        ProductExpert,
		Description: "Answer questions about product features, recommendations, and comparisons using semantic search",
		Priority:    20,
		Tools:       []string{"search_products", "compare_products", "get_product_recommendations"},
		Patterns: []string{
			`\bchainsaw`,
			`\btrimmer`,
			`\bblower`,
			`\bhedge`,
			`\bpressure.washer`,
			`\bsprayer`,
			`\b(ms|fs|bg|hs|rb|re|sr)\s*[-]?\s*\d{2,4}\b`,
			`(best|recommend|suggest|ideal).*(for|to)`,
			`(which|what).*(should|would|could).*(buy|use|get)`,
			`(looking for|need).*(equipment|tool)`,
			`recommendation`,
			`(compare|vs|versus|difference|better).*(ms|fs|bg|hs)`,
			`(ms|fs|bg|hs)\s*\d+.*(vs|versus|or|compared)`,
			`(feature|specification|spec|weight|power|engine|battery)`,
			`(anti.?vibration|easy.?start|m.?tronic|intellicarb)`,
			`(professional|homeowner|commercial|residential).*(use|grade)`,
			`(heavy|light).*(duty)`,
			`(logging|firewood|yard|lawn|garden)`,
			`(battery.powered|gas.powered|electric|cordless)`,
		},
		Prompt: `You are a product specialist for the outdoor power equipment catalog.
- Use search_products for feature, use-case and model questions.
- Use compare_products when two or more models are named.
- Use get_product_recommendations when the user describes a job or user profile.
Quote model numbers exactly, cite weights, power and price when the tool returns them, and keep the answer short.`,
	})
}

func salesSkill() Skill {
	return MustNew(Definition{
		Name:        SalesAnalyst,
		Description: "Analyze sales performance including revenue, trends, rankings, and regional breakdowns",
		Priority:    15,
		Tools:       []string{"query_sales_data"},
		Patterns: []string{
			`\brevenue\b`,
			`\bsales\b(?!.*forecast)`,
			`\bsold\b`,
			`how much.*(made|earned)`,
			`(top|best|worst|bottom).*(product|region|category|seller)(?!.*dealer)`,
			`(rank|ranking|leaderboard)`,
			`(ytd|year.to.date|mtd|qtd)`,
			`(last|previous|this).*(month|quarter|year).*(revenue|sales|total)`,
			`(2024|2025|q1|q2|q3|q4).*(revenue|sales|total)`,
			`(breakdown|split|distribution).*(by|of)`,
			`(by|per).*(region|category|product).*(sales|revenue)?`,
			`(regional|category).*(breakdown|performance|sales)`,
		},
		Prompt: `You are a sales analyst. Answer with query_sales_data using the query type that fits the question:
summary for totals, top_products for rankings, by_region or by_category for breakdowns, trend for monthly series.
Lead with the headline number, then at most five supporting rows. Format currency with thousands separators.`,
	})
}

func inventorySkill() Skill {
	return MustNew(Definition{
		Name:        InventoryAnalyst,
		Description: "Analyze inventory levels, stockouts, and days of supply",
		Priority:    17,
		Tools:       []string{"query_inventory_data"},
		Patterns: []string{
			`\binventory`,
			`\bstock\b`,
			`\bstockout`,
			`\bstock.?out`,
			`(low|critical|out of).*(stock|inventory)`,
			`running low`,
			`(in stock|on hand)`,
			`how (much|many).*(inventory|stock|left|remaining)`,
			`days.*(of)?.*(supply|inventory)`,
			`(how long|when).*(last|run out)`,
			`warehouse`,
			`distribution.center`,
			`(restock|reorder|replenish)`,
			`(critical|low|normal).*(status|level)`,
		},
		Prompt: `You are an inventory analyst. Use query_inventory_data with summary, low_stock, stockouts or by_region.
Report units on hand, days of supply and status per product. Flag anything critical first and suggest a replenishment when days of supply is under 14.`,
	})
}

func insightsSkill() Skill {
	return MustNew(Definition{
		Name:        InsightsAdvisor,
		Description: "Provide proactive insights, alerts, anomalies, and executive briefings",
		Priority:    25,
		Tools:       []string{"get_proactive_insights", "detect_anomalies_realtime", "get_daily_briefing"},
		Patterns: []string{
			`anomal.*(2024|2025|q[1-4]|march|april|january|february|may|june|july|august|september|october|november|december)`,
			`(detect|find|run).*anomal`,
			`^(good\s+)?(morning|afternoon|evening|day)`,
			`^(hi|hello|hey)\s*(!|,|\.|$)`,
			`(daily|morning|weekly)\s+.*(briefing|update|summary|report)`,
			`(what|anything).*(should|need).*(know|attention|aware)`,
			`(catch me up|bring me up|update me)`,
			`(alert|warning|issue|problem|concern)`,
			`(any|are there)\s+.*(alert|issue|problem|anomal)`,
			`(what|which).*(wrong|issue|problem|attention)`,
			`(urgent|critical|important).*(issue|alert|matter)`,
			`anomal.*(20\d{2}|q[1-4]|jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)`,
			`(anomal|unusual|abnormal|unexpected|outlier|spike|drop)`,
			`(detect|find|identify)\s+.*(anomal|unusual|pattern)`,
			`(something).*(off|wrong|unusual|strange)`,
			`(deviation|variance|fluctuation)`,
			`(insight|observation|finding|discovery)`,
			`(what|any).*(insight|observation|notable|interesting)`,
			`(trend|pattern).*(notice|see|identify|detect)`,
			`(proactive|ahead|anticipate)`,
			`(forecast|predict|expect).*(issue|problem|alert)`,
			`(risk|opportunity).*(identify|detect|see)`,
		},
		Prompt: `You are the executive insights advisor.
- Greetings and "catch me up" requests get get_daily_briefing.
- Alert, issue and risk questions get get_proactive_insights.
- Anomaly questions get detect_anomalies_realtime, passing a period when one is named.
Order findings by severity (critical, warning, info) and end with one recommended action.`,
	})
}

func dealerSkill() Skill {
	return MustNew(Definition{
		Name:        DealerAnalyst,
		Description: "Analyze dealer network including performance, coverage, dealer types, and territory gaps",
		Priority:    22,
		Tools:       []string{"query_dealer_data"},
		Patterns: []string{
			`\bdealer`,
			`\breseller`,
			`\bdistributor`,
			`\bpartner\b(?!.*product)`,
			`(network|coverage|territory|gap)`,
			`(flagship|authorized|service.center)`,
			`(top|best|worst).*(dealer|partner|reseller)`,
			`(dealer|partner).*(performance|ranking|tier)`,
		},
		Prompt: `You are a dealer network analyst. Use query_dealer_data with summary, top_dealers, bottom_dealers, by_region, by_tier, performance_tiers or coverage_gaps.
Name dealers with their state and tier, and call out regions where coverage is thin.`,
	})
}

func forecastSkill() Skill {
	return MustNew(Definition{
		Name:        ForecastAnalyst,
		Description: "Generate sales forecasts, projections, and seasonal pattern analysis",
		Priority:    24,
		Tools:       []string{"get_sales_forecast"},
		Patterns: []string{
			`\bforecast`,
			`\bpredict`,
			`\bprojection`,
			`\bproject\b`,
			`(next|upcoming|future).*(month|quarter|year)`,
			`(will|expect|should).*(be|hit|reach)`,
			`(what|how much).*(will|expect|likely)`,
			`\bseason`,
			`(peak|slow|busy).*(time|period|month)`,
			`(busiest|slowest)`,
			`(year.end|annual).*(projection|estimate)`,
			`(run.rate|pace|trajectory)`,
			`(on track|ahead|behind)`,
		},
		Prompt: `You are a forecast analyst. Use get_sales_forecast with the requested horizon in months (default 3) and optional category or region.
Present the projection as a range, state the method the tool reports, and mention the seasonal peak when one falls inside the horizon.`,
	})
}

func trendSkill() Skill {
	return MustNew(Definition{
		Name:        TrendAnalyst,
		Description: "Analyze growth trends, YoY/MoM comparisons, and momentum indicators",
		Priority:    19,
		Tools:       []string{"analyze_trends"},
		Patterns: []string{
			`\byoy\b`,
			`\by/y\b`,
			`\bmom\b`,
			`\bm/m\b`,
			`year.over.year`,
			`month.over.month`,
			`(compare|vs|versus).*(last|prior|previous).*(year|month)`,
			`(this|current).*(year|month).*(vs|versus|compared)`,
			`how.*(changed|different|grown|declined)`,
			`\bgrowth`,
			`\bgrowing\b`,
			`\bdecline`,
			`\bdeclining\b`,
			`(up|down|increase|decrease).+\d+\s*%`,
			`\bmomentum`,
			`\btrend`,
			`(accelerat|decelerat|slowing|picking up)`,
		},
		Prompt: `You are a trend analyst. Use analyze_trends with comparison yoy or mom and an optional dimension (category or region).
Report growth as signed percentages, separate accelerating from decelerating segments, and keep to the top movers.`,
	})
}
