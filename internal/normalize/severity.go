package normalize

import (
	"strings"

	"github.com/iacguard/iacguard/pkg/models"
)

// Checkov open-source emits null severity without a platform API key, so
// findings are classified from a maintained check-id mapping with category
// heuristics as fallback.

var criticalChecks = map[string]bool{
	"CKV_AWS_1":         true, // root account usage
	"CKV_AWS_19":        true, // S3 encryption at rest
	"CKV_AWS_21":        true, // S3 versioning
	"CKV_AWS_40":        true, // IAM policy attached to users
	"CKV_AWS_41":        true, // IAM policy attached to groups or roles
	"CKV_AWS_61":        true, // IAM password policy symbols
	"CKV_AWS_62":        true, // IAM password policy numbers
	"CKV_K8S_16":        true, // privileged container
	"CKV_K8S_17":        true, // host PID namespace
	"CKV_K8S_18":        true, // host IPC namespace
	"CKV_K8S_19":        true, // host network namespace
	"CKV_K8S_CUSTOM_13": true, // run as non-root
	"CKV_K8S_CUSTOM_15": true, // allowPrivilegeEscalation
	"CKV_K8S_CUSTOM_16": true, // privileged container
	"CKV_CUSTOM_17":     true, // hardcoded secrets in ENV
	"CKV_DOCKER_7":      true, // base image latest tag
}

var highChecks = map[string]bool{
	"CKV_AWS_4":         true,
	"CKV_AWS_7":         true,
	"CKV_AWS_16":        true,
	"CKV_AWS_17":        true,
	"CKV_AWS_18":        true,
	"CKV_AWS_24":        true, // ssh open to world
	"CKV_AWS_25":        true, // rdp open to world
	"CKV_AWS_26":        true,
	"CKV_AWS_27":        true,
	"CKV_AWS_33":        true,
	"CKV_AWS_109":       true,
	"CKV_AWS_110":       true,
	"CKV_AWS_111":       true,
	"CKV_AWS_260":       true,
	"CKV_AWS_283":       true,
	"CKV_AWS_356":       true,
	"CKV_K8S_20":        true,
	"CKV_K8S_23":        true,
	"CKV_K8S_28":        true,
	"CKV_K8S_29":        true,
	"CKV_K8S_30":        true,
	"CKV_K8S_37":        true,
	"CKV_TF_CUSTOM_10":  true,
	"CKV_TF_CUSTOM_13":  true,
	"CKV_TF_CUSTOM_14":  true,
	"CKV_TF_CUSTOM_15":  true,
	"CKV_TF_CUSTOM_16":  true,
	"CKV_TF_CUSTOM_19":  true,
	"CKV_CUSTOM_13":     true,
	"CKV_CUSTOM_18":     true,
	"CKV_CUSTOM_19":     true,
}

var mediumChecks = map[string]bool{
	"CKV_AWS_6":  true,
	"CKV_AWS_10": true,
	"CKV_AWS_23": true,
	"CKV_AWS_35": true,
	"CKV_AWS_36": true,
	"CKV_AWS_67": true,
	"CKV_AWS_118": true,
	"CKV_K8S_8":  true, // liveness probe
	"CKV_K8S_9":  true, // readiness probe
	"CKV_K8S_10": true, // cpu requests
	"CKV_K8S_11": true, // cpu limits
	"CKV_K8S_12": true, // memory requests
	"CKV_K8S_13": true, // memory limits
	"CKV_K8S_14": true, // image tag
	"CKV_K8S_21": true, // default namespace
	"CKV_K8S_43": true, // image digest
	"CKV_DOCKER_2": true, // HEALTHCHECK
	"CKV_DOCKER_3": true, // USER instruction
}

var lowChecks = map[string]bool{
	"CKV_AWS_18_LOG": true,
	"CKV_K8S_40":     true, // high UID
	"CKV_K8S_31":     true, // seccomp profile
	"CKV_K8S_38":     true, // service account tokens
	"CKV_DOCKER_9":   true, // apt usage
}

// SeverityFor classifies a check id, using the raw severity when the
// scanner did supply one and the mapping otherwise.
func SeverityFor(checkID, rawSeverity, category string) models.Severity {
	if s, err := models.ParseSeverity(rawSeverity); err == nil {
		return s
	}

	switch {
	case strings.HasPrefix(checkID, "CKV_SECRET"):
		return models.SeverityCritical
	case criticalChecks[checkID]:
		return models.SeverityCritical
	case highChecks[checkID]:
		return models.SeverityHigh
	case mediumChecks[checkID]:
		return models.SeverityMedium
	case lowChecks[checkID]:
		return models.SeverityLow
	}

	if category != "" {
		upper := strings.ToUpper(category)
		switch {
		case containsAny(upper, "SECRET", "PASSWORD", "CREDENTIAL", "KEY"):
			return models.SeverityCritical
		case containsAny(upper, "ENCRYPTION", "IAM", "RBAC", "AUTHENTICATION"):
			return models.SeverityHigh
		case containsAny(upper, "NETWORKING", "LOGGING", "MONITORING", "BACKUP", "RECOVERY"):
			return models.SeverityMedium
		case containsAny(upper, "CONVENTION", "GENERAL", "BEST_PRACTICE"):
			return models.SeverityLow
		}
	}

	return models.SeverityMedium
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
