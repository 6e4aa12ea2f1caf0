package checkov

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFrameworkByName(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"Dockerfile", "dockerfile"},
		{"dockerfile.prod", "dockerfile"},
		{"main.tf", "terraform"},
		{"prod.tfvars", "terraform"},
		{"main.tf.json", "terraform_json"},
		{"storage.bicep", "bicep"},
		{"azuredeploy.template.json", "arm"},
		{".github/workflows/ci.yaml", "github_actions"},
		{".gitlab-ci.yml", "gitlab_ci"},
		{"azure-pipelines.yml", "azure_pipelines"},
		{".circleci/config.yml", "circleci_pipelines"},
		{"bitbucket-pipelines.yml", "bitbucket_pipelines"},
		{"argo-workflow.yaml", "argo_workflows"},
		{"README.md", "terraform"}, // fallback
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DetectFramework(c.path), "path %s", c.path)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDetectFrameworkYAMLContent(t *testing.T) {
	dir := t.TempDir()

	k8s := writeFile(t, dir, "deploy.yaml", "apiVersion: apps/v1\nkind: Deployment\n")
	assert.Equal(t, "kubernetes", DetectFramework(k8s))

	cfn := writeFile(t, dir, "stack.yaml", "AWSTemplateFormatVersion: '2010-09-09'\n")
	assert.Equal(t, "cloudformation", DetectFramework(cfn))

	helm := writeFile(t, dir, "values.yaml", "replicaCount: 2\n")
	assert.Equal(t, "helm", DetectFramework(helm))

	kustomize := writeFile(t, dir, "kustomization.yaml", "resources:\n  - deploy.yaml\n")
	assert.Equal(t, "kustomize", DetectFramework(kustomize))

	playbook := writeFile(t, dir, "playbook.yml", "- hosts: all\n  tasks: []\n")
	assert.Equal(t, "ansible", DetectFramework(playbook))

	api := writeFile(t, dir, "api.yaml", "openapi: 3.0.0\ninfo: {}\n")
	assert.Equal(t, "openapi", DetectFramework(api))

	// yaml without recognizable markers defaults to kubernetes
	plain := writeFile(t, dir, "misc.yaml", "foo: bar\n")
	assert.Equal(t, "kubernetes", DetectFramework(plain))
}

func TestDetectFrameworkJSONContent(t *testing.T) {
	dir := t.TempDir()

	cfn := writeFile(t, dir, "stack.json", `{"AWSTemplateFormatVersion": "2010-09-09"}`)
	assert.Equal(t, "cloudformation", DetectFramework(cfn))

	plain := writeFile(t, dir, "data.json", `{"foo": "bar"}`)
	assert.Equal(t, "json", DetectFramework(plain))
}

func TestGroupByFramework(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf", `resource "aws_s3_bucket" "b" {}`)
	writeFile(t, dir, "vars.tf", `variable "name" {}`)
	writeFile(t, dir, "Dockerfile", "FROM alpine\n")
	writeFile(t, dir, ".github/workflows/ci.yaml", "on: push\n")

	grouped, err := GroupByFramework(dir)
	require.NoError(t, err)

	assert.Len(t, grouped["terraform"], 2)
	assert.Len(t, grouped["dockerfile"], 1)
	assert.Len(t, grouped["github_actions"], 1)
	assert.NotContains(t, grouped, "kubernetes")
}

func TestGroupByFrameworkSingleFile(t *testing.T) {
	dir := t.TempDir()
	tf := writeFile(t, dir, "main.tf", "{}")

	grouped, err := GroupByFramework(tf)
	require.NoError(t, err)
	require.Len(t, grouped, 1)
	assert.Equal(t, []string{tf}, grouped["terraform"])
}

func TestGroupByFrameworkSkipsGitInternals(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.tf", "{}")
	writeFile(t, dir, ".git/config", "[core]\n")

	grouped, err := GroupByFramework(dir)
	require.NoError(t, err)
	assert.Len(t, grouped, 1)
	assert.Len(t, grouped["terraform"], 1)
}
