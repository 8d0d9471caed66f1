package policy

import "testing"

func TestGetTemplates_RulesExistInLibrary(t *testing.T) {
	known := make(map[string]bool)
	for _, def := range GetLibrary() {
		known[def.Name] = true
	}

	for _, tmpl := range GetTemplates() {
		for _, rule := range tmpl.Rules {
			if !known[rule] {
				t.Errorf("Template %s references unknown rule %s", tmpl.Name, rule)
			}
		}
		for _, rule := range tmpl.Rules {
			if _, ok := tmpl.Config[ruleConfigProbe(rule)]; rule != "missing_checkout" && !ok {
				t.Errorf("Template %s missing config for rule %s", tmpl.Name, rule)
			}
		}
	}
}

// ruleConfigProbe 每条规则在模板配置中的代表键
func ruleConfigProbe(rule string) string {
	switch rule {
	case "late_arrival", "early_leave":
		return "grace_minutes"
	case "max_weekly_hours":
		return "max_weekly_hours"
	case "consecutive_ot_days":
		return "max_consecutive_ot_days"
	case "visit_evidence":
		return "visit_evidence_weight"
	default:
		return rule
	}
}

func TestFindTemplate(t *testing.T) {
	tmpl, ok := FindTemplate("field")
	if !ok {
		t.Fatal("Expected field template")
	}
	if len(tmpl.Rules) != 9 {
		t.Errorf("Expected 9 rules in field template, got %d", len(tmpl.Rules))
	}

	if _, ok := FindTemplate("restaurant"); ok {
		t.Error("Expected unknown template to be absent")
	}
}

func TestTemplate_MergedConfig(t *testing.T) {
	tmpl, _ := FindTemplate("office")

	merged := tmpl.MergedConfig(map[string]interface{}{"grace_minutes": 5})
	if merged["grace_minutes"] != 5 {
		t.Errorf("Expected override applied, got %v", merged["grace_minutes"])
	}
	if merged["max_weekly_hours"] != 44 {
		t.Errorf("Expected base value kept, got %v", merged["max_weekly_hours"])
	}
	// 原模板不受覆盖影响
	if tmpl.Config["grace_minutes"] != 10 {
		t.Errorf("Expected template untouched, got %v", tmpl.Config["grace_minutes"])
	}

	merged = tmpl.MergedConfig(nil)
	if len(merged) != len(tmpl.Config) {
		t.Errorf("Expected full copy, got %d keys", len(merged))
	}
}
