package fallback

// Per-service canned degraded responses, consulted when the breaker refuses
// admission and no cached response resolves the call.
// Each returns nil for methods it does not cover, so the rule chain still
// gets a chance.

func methodTail(method string) string {
	last := method
	for i := len(method) - 1; i >= 0; i-- {
		if method[i] == '/' || method[i] == '.' {
			last = method[i+1:]
			break
		}
	}
	return last
}

// PlannerFallback covers the planner service: health checks degrade rather
// than fail, and a plan request gets a single-step placeholder telling the
// caller to retry later.
func PlannerFallback(method string, payload interface{}) interface{} {
	switch methodTail(method) {
	case "HealthCheck":
		return map[string]interface{}{
			"status":  "Degraded",
			"version": "fallback",
			"message": "planner temporarily unavailable",
		}
	case "CreatePlan", "Plan":
		return map[string]interface{}{
			"steps": []map[string]interface{}{
				{"order": 1, "phase": "Fallback", "action": "Retry later"},
			},
			"total_steps": 1,
			"message":     "fallback plan - planner temporarily unavailable",
		}
	}
	return nil
}

// AnalystFallback covers the analyst service: health checks degrade, and an
// analyze request returns an empty findings set rather than failing outright.
func AnalystFallback(method string, payload interface{}) interface{} {
	switch methodTail(method) {
	case "HealthCheck":
		return map[string]interface{}{
			"status":  "Degraded",
			"version": "fallback",
		}
	case "Analyze":
		return map[string]interface{}{
			"summary":  "analysis unavailable - analyst temporarily down",
			"findings": []interface{}{},
		}
	}
	return nil
}

// ExecutorFallback covers the executor service: health checks degrade, and
// an execute request reports a clean failure with exit code -1 rather than
// leaving the caller waiting on a hung command.
func ExecutorFallback(method string, payload interface{}) interface{} {
	switch methodTail(method) {
	case "HealthCheck":
		return map[string]interface{}{
			"status":  "Degraded",
			"version": "fallback",
		}
	case "Execute":
		return map[string]interface{}{
			"success":   false,
			"stderr":    "execution unavailable - executor temporarily down",
			"exit_code": -1,
		}
	}
	return nil
}

// RegisterDefaultHandlers wires the three canned service handlers into a
// registry under their service names.
func RegisterDefaultHandlers(r *Registry) {
	r.ServiceHandler["planner"] = PlannerFallback
	r.ServiceHandler["analyst"] = AnalystFallback
	r.ServiceHandler["executor"] = ExecutorFallback
}
