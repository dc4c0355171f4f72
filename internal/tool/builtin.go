package tool

import (
	"fmt"
	"strings"
)

// objectSchema builds a JSON-schema-style parameter object.
func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

// Builtin returns a registry populated with the demonstration tool set used
// by the stock personas. Real deployments register their own tools on top.
func Builtin() *Registry {
	r := NewRegistry()

	mustRegister := func(def Definition, impl Func) {
		if err := r.Register(def, impl); err != nil {
			panic(err)
		}
	}

	mustRegister(Definition{
		Name:        "inventory_check",
		Description: "Checks inventory levels and compliance status.",
		Parameters:  objectSchema(map[string]any{"business_unit": stringProp("Business unit to audit")}, "business_unit"),
	}, func(params map[string]any) (any, error) {
		bu := stringParam(params, "business_unit")
		if strings.EqualFold(bu, "global recruitment") {
			return map[string]any{"status": "ok", "stock_level": 1000, "compliance_status": "good"}, nil
		}
		return map[string]any{"status": "warning", "stock_level": 50, "compliance_status": "needs_review"}, nil
	})

	mustRegister(Definition{
		Name:        "demand_forecasting",
		Description: "Forecasts product demand based on historical data.",
		Parameters:  map[string]any{},
	}, func(map[string]any) (any, error) {
		return map[string]any{"status": "success", "message": "Demand forecast generated."}, nil
	})

	mustRegister(Definition{
		Name:        "financial_forecasting",
		Description: "Forecasts future financial performance.",
		Parameters:  map[string]any{},
	}, func(map[string]any) (any, error) {
		return map[string]any{"status": "success", "message": "Financial forecast generated."}, nil
	})

	mustRegister(Definition{
		Name:        "invoice_processing",
		Description: "Processes and categorizes invoices.",
		Parameters:  map[string]any{},
	}, func(map[string]any) (any, error) {
		return map[string]any{"status": "success", "message": "Invoices processed."}, nil
	})

	mustRegister(Definition{
		Name:        "audit_log_check",
		Description: "Checks audit logs for anomalies.",
		Parameters:  map[string]any{},
	}, func(map[string]any) (any, error) {
		return map[string]any{"status": "success", "message": "Audit logs checked, no anomalies found."}, nil
	})

	mustRegister(Definition{
		Name:        "resume_analysis",
		Description: "Analyzes a candidate's resume for key skills.",
		Parameters:  objectSchema(map[string]any{"candidate_name": stringProp("Name of the candidate")}),
	}, func(params map[string]any) (any, error) {
		name := stringParam(params, "candidate_name")
		if name == "" {
			name = "Candidate"
		}
		return map[string]any{"status": "success", "message": fmt.Sprintf("Resume for %s analyzed.", name)}, nil
	})

	mustRegister(Definition{
		Name:        "candidate_ranking",
		Description: "Ranks candidates based on job requirements.",
		Parameters:  map[string]any{},
	}, func(map[string]any) (any, error) {
		return map[string]any{"status": "success", "message": "Candidates ranked successfully."}, nil
	})

	mustRegister(Definition{
		Name:        "email_sender",
		Description: "Sends an email notification.",
		Parameters: objectSchema(map[string]any{
			"recipient": stringProp("Email address of the recipient"),
			"subject":   stringProp("Subject line"),
		}, "recipient", "subject"),
	}, func(params map[string]any) (any, error) {
		return map[string]any{
			"status":  "success",
			"message": fmt.Sprintf("Email sent to %s with subject %q.", stringParam(params, "recipient"), stringParam(params, "subject")),
		}, nil
	})

	mustRegister(Definition{
		Name:        "report_generator",
		Description: "Generates a PDF report.",
		Parameters:  objectSchema(map[string]any{"report_name": stringProp("Name of the report")}, "report_name"),
	}, func(params map[string]any) (any, error) {
		return map[string]any{
			"status":  "success",
			"message": fmt.Sprintf("Report %q generated.", stringParam(params, "report_name")+".pdf"),
		}, nil
	})

	mustRegister(Definition{
		Name:        "chat",
		Description: "General chat function.",
		Parameters:  map[string]any{},
	}, func(map[string]any) (any, error) {
		return map[string]any{"status": "success", "message": "Hello! How can I help you?"}, nil
	})

	mustRegister(Definition{
		Name:        "help",
		Description: "Provides help on available tools.",
		Parameters:  map[string]any{},
	}, func(map[string]any) (any, error) {
		return map[string]any{
			"status":  "success",
			"message": "You can ask me to perform tasks related to finance, recruitment, and compliance.",
		}, nil
	})

	return r
}
