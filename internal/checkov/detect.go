package checkov

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/iacguard/iacguard/pkg/utils"
)

// DetectFramework decides which scanner framework a file belongs to, from
// its name, location, and when needed a peek at its head. Unknown files
// default to terraform, matching the scanner's own fallback.
func DetectFramework(path string) string {
	filename := strings.ToLower(filepath.Base(path))
	fullpath := strings.ToLower(filepath.ToSlash(path))

	switch {
	case filename == "dockerfile" || strings.HasPrefix(filename, "dockerfile."):
		return "dockerfile"
	case strings.HasSuffix(filename, ".tf.json"):
		return "terraform_json"
	case strings.HasSuffix(filename, ".tf") || strings.HasSuffix(filename, ".tfvars"):
		return "terraform"
	case strings.HasSuffix(filename, ".bicep"):
		return "bicep"
	case strings.HasSuffix(filename, ".json") && strings.Contains(filename, "template"):
		return "arm"
	case strings.Contains(fullpath, ".github/workflows"):
		return "github_actions"
	case strings.Contains(filename, ".gitlab-ci"):
		return "gitlab_ci"
	case strings.Contains(filename, "azure-pipelines"):
		return "azure_pipelines"
	case strings.Contains(fullpath, ".circleci"):
		return "circleci_pipelines"
	case strings.Contains(filename, "bitbucket-pipelines"):
		return "bitbucket_pipelines"
	case strings.Contains(filename, "argo") && isYAML(filename):
		return "argo_workflows"
	case isYAML(filename):
		return detectYAML(path, filename)
	case strings.HasSuffix(filename, ".json"):
		return detectJSON(path)
	}
	return "terraform"
}

func isYAML(filename string) bool {
	return strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml")
}

func detectYAML(path, filename string) string {
	head := readHead(path, 200)
	switch {
	case strings.Contains(head, "apiVersion") && strings.Contains(head, "kind"):
		return "kubernetes"
	case strings.Contains(filename, "chart.yaml") || strings.Contains(filename, "values.yaml"):
		return "helm"
	case strings.Contains(filename, "kustomization.yaml"):
		return "kustomize"
	case strings.Contains(filename, "ansible") || strings.Contains(filename, "playbook"):
		return "ansible"
	case strings.Contains(head, "AWSTemplateFormatVersion") || strings.Contains(head, "Resources:"):
		return "cloudformation"
	case strings.Contains(filename, "serverless"):
		return "serverless"
	case strings.Contains(strings.ToLower(head), "openapi") || strings.Contains(strings.ToLower(head), "swagger"):
		return "openapi"
	}
	return "kubernetes"
}

func detectJSON(path string) string {
	head := readHead(path, 500)
	if strings.Contains(head, "AWSTemplateFormatVersion") || strings.Contains(head, "AWS::CloudFormation") {
		return "cloudformation"
	}
	return "json"
}

func readHead(path string, n int) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	buf := make([]byte, n)
	read, _ := f.Read(buf)
	return string(buf[:read])
}

// GroupByFramework walks an upload directory (or accepts a single file) and
// buckets every regular file by its detected framework. Empty buckets never
// appear in the result.
func GroupByFramework(root string) (map[string][]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]string)
	if !info.IsDir() {
		grouped[DetectFramework(root)] = []string{root}
		return grouped, nil
	}

	files, err := utils.WalkFiles(root)
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		fw := DetectFramework(path)
		grouped[fw] = append(grouped[fw], path)
	}
	return grouped, nil
}
