package toolbuilder

import (
	"fmt"
	"regexp"

	"github.com/flowmatic/flowmatic/pkg/models"
)

// RiskLevel grades custom-code scan findings.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// ScanReport is the result of a static safety scan over custom code.
// The scan is a pattern filter, not a sandbox: it catches the obvious
// dangerous idioms before publishing, nothing more.
type ScanReport struct {
	Safe       bool      `json:"safe"`
	Violations []string  `json:"violations"`
	RiskLevel  RiskLevel `json:"risk_level"`
}

type scanRule struct {
	pattern     *regexp.Regexp
	description string
	risk        RiskLevel
}

var scanRules = []scanRule{
	{regexp.MustCompile(`\beval\s*\(`), "dynamic code evaluation via eval()", RiskCritical},
	{regexp.MustCompile(`new\s+Function\s*\(`), "dynamic code evaluation via Function constructor", RiskCritical},
	{regexp.MustCompile(`\brequire\s*\(`), "module loading via require()", RiskCritical},
	{regexp.MustCompile(`\bimport\s*\(`), "dynamic import()", RiskCritical},
	{regexp.MustCompile(`child_process`), "process spawning", RiskCritical},
	{regexp.MustCompile(`\bprocess\s*\.\s*(exit|kill|env|binding)`), "process control or environment access", RiskCritical},
	{regexp.MustCompile(`\bfs\s*\.\s*\w`), "filesystem access", RiskHigh},
	{regexp.MustCompile(`\b(readFileSync|writeFileSync|unlinkSync|readdirSync)\b`), "filesystem access", RiskHigh},
	{regexp.MustCompile(`\b(XMLHttpRequest|fetch)\s*\(`), "network access from custom code", RiskHigh},
	{regexp.MustCompile(`__proto__|Object\s*\.\s*setPrototypeOf`), "prototype manipulation", RiskHigh},
	{regexp.MustCompile(`\bglobalThis\b`), "global scope access", RiskHigh},
	{regexp.MustCompile(`set(Timeout|Interval)\s*\(\s*["']`), "string-argument timer (implicit eval)", RiskHigh},
	{regexp.MustCompile(`String\s*\.\s*fromCharCode`), "character-code string construction (obfuscation idiom)", RiskMedium},
	{regexp.MustCompile(`\b(atob|btoa|unescape)\s*\(`), "encoded payload handling (obfuscation idiom)", RiskMedium},
	{regexp.MustCompile(`\\x[0-9a-fA-F]{2}`), "hex-escaped string content (obfuscation idiom)", RiskMedium},
}

// Scan inspects one custom-code body and reports every matched rule.
// Safe means no high or critical finding; medium findings flag the code
// without blocking it.
func Scan(code string) ScanReport {
	report := ScanReport{Safe: true, RiskLevel: RiskLow}

	for _, rule := range scanRules {
		if !rule.pattern.MatchString(code) {
			continue
		}

		report.Violations = append(report.Violations, rule.description)

		if riskRank[rule.risk] > riskRank[report.RiskLevel] {
			report.RiskLevel = rule.risk
		}
	}

	if riskRank[report.RiskLevel] >= riskRank[RiskHigh] {
		report.Safe = false
	}

	return report
}

// ScanTool scans every custom step in the tool's logic, including steps
// nested in condition and switch branches, and returns the worst
// finding.
func ScanTool(tool *models.Tool) ScanReport {
	merged := ScanReport{Safe: true, RiskLevel: RiskLow}

	scanLogic(tool.Logic, &merged)

	return merged
}

func scanLogic(steps []*models.LogicStep, merged *ScanReport) {
	for _, step := range steps {
		if step.Type == models.LogicStepCustom {
			if code, ok := step.Config["code"].(string); ok {
				mergeReport(merged, Scan(code))
			}
		}

		scanLogic(step.Then, merged)
		scanLogic(step.Else, merged)
		scanLogic(step.Default, merged)

		for _, switchCase := range step.Cases {
			scanLogic(switchCase.Steps, merged)
		}
	}
}

func mergeReport(merged *ScanReport, report ScanReport) {
	merged.Violations = append(merged.Violations, report.Violations...)

	if riskRank[report.RiskLevel] > riskRank[merged.RiskLevel] {
		merged.RiskLevel = report.RiskLevel
	}

	if !report.Safe {
		merged.Safe = false
	}
}

// CheckPublishable gates the publish transition: tools whose custom
// code scans high or critical are refused.
func CheckPublishable(tool *models.Tool) error {
	report := ScanTool(tool)
	if report.Safe {
		return nil
	}

	return fmt.Errorf("SECURITY_ERROR: custom code failed safety scan (risk %s): %v",
		report.RiskLevel, report.Violations)
}
