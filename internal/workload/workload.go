// Package workload normalizes free-form submitted workload objects into
// the cluster's canonical typed shape (batchv1.Job / batchv1.CronJob /
// corev1.ConfigMap), and models the tagged Job|CronJob sum type the rest
// of the core dispatches on.
package workload

import (
	"fmt"
	"strings"

	"github.com/kbatch-dev/kbatch-proxy/internal/kerr"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// Kind tags which concrete resource a Submission wraps.
type Kind int

const (
	KindJob Kind = iota
	KindCronJob
)

func (k Kind) String() string {
	if k == KindCronJob {
		return "cronjob"
	}
	return "job"
}

// Submission is the parsed, typed form of a WorkloadSubmission: a tagged
// Job|CronJob plus the optional code ConfigMap. Exactly one of Job/CronJob
// is populated, selected by Kind.
type Submission struct {
	Kind    Kind
	Job     *batchv1.Job
	CronJob *batchv1.CronJob
	Code    *corev1.ConfigMap
}

// rawSubmission mirrors the wire shape of a submit request body:
// {"job": {...}, "code": {...}}.
type rawSubmission struct {
	Job  map[string]interface{} `json:"job"`
	Code map[string]interface{} `json:"code"`
}

// ParseJob converts a raw "{job, code?}" body into a Submission tagged as
// a plain Job.
func ParseJob(body map[string]interface{}) (*Submission, error) {
	return parse(body, KindJob)
}

// ParseCronJob converts a raw "{job, code?}" body into a Submission tagged
// as a CronJob.
func ParseCronJob(body map[string]interface{}) (*Submission, error) {
	return parse(body, KindCronJob)
}

func parse(body map[string]interface{}, kind Kind) (*Submission, error) {
	raw := rawSubmission{}
	if v, ok := body["job"]; ok {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, kerr.MalformedWorkloadf("job must be an object")
		}
		raw.Job = m
	}
	if raw.Job == nil {
		return nil, kerr.MalformedWorkloadf("missing required field: job")
	}
	if v, ok := body["code"]; ok && v != nil {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, kerr.MalformedWorkloadf("code must be an object")
		}
		raw.Code = m
	}

	sub := &Submission{Kind: kind}

	switch kind {
	case KindJob:
		job, err := toJob(raw.Job)
		if err != nil {
			return nil, err
		}
		if err := validateJobSpec(&job.Spec, "spec"); err != nil {
			return nil, err
		}
		sub.Job = job
	case KindCronJob:
		cj, err := toCronJob(raw.Job)
		if err != nil {
			return nil, err
		}
		if err := validateJobSpec(&cj.Spec.JobTemplate.Spec, "spec.jobTemplate.spec"); err != nil {
			return nil, err
		}
		sub.CronJob = cj
	}

	if raw.Code != nil {
		cm, err := toConfigMap(raw.Code)
		if err != nil {
			return nil, err
		}
		sub.Code = cm
	}

	return sub, nil
}

func toJob(m map[string]interface{}) (*batchv1.Job, error) {
	job := &batchv1.Job{}
	if err := fromUnstructured(m, job); err != nil {
		return nil, kerr.Wrap(kerr.MalformedWorkload, "invalid job", err)
	}
	if job.ObjectMeta.Name == "" && job.ObjectMeta.GenerateName == "" {
		return nil, kerr.MalformedWorkloadf("job.metadata.name or generate_name is required")
	}
	if job.Spec.Template.Spec.Containers == nil {
		job.Spec.Template.Spec.Containers = []corev1.Container{}
	}
	return job, nil
}

func toCronJob(m map[string]interface{}) (*batchv1.CronJob, error) {
	cj := &batchv1.CronJob{}
	if err := fromUnstructured(m, cj); err != nil {
		return nil, kerr.Wrap(kerr.MalformedWorkload, "invalid cronjob", err)
	}
	if cj.ObjectMeta.Name == "" && cj.ObjectMeta.GenerateName == "" {
		return nil, kerr.MalformedWorkloadf("job.metadata.name or generate_name is required")
	}
	if cj.Spec.Schedule == "" {
		return nil, kerr.MalformedWorkloadf("job.spec.schedule is required for a cronjob")
	}
	if cj.Spec.JobTemplate.Spec.Template.Spec.Containers == nil {
		cj.Spec.JobTemplate.Spec.Template.Spec.Containers = []corev1.Container{}
	}
	return cj, nil
}

func toConfigMap(m map[string]interface{}) (*corev1.ConfigMap, error) {
	cm := &corev1.ConfigMap{}
	if err := fromUnstructured(m, cm); err != nil {
		return nil, kerr.Wrap(kerr.MalformedWorkload, "invalid code configmap", err)
	}
	if _, ok := cm.BinaryData["code"]; !ok {
		return nil, kerr.MalformedWorkloadf("code.binary_data.code is required")
	}
	return cm, nil
}

func validateJobSpec(spec *batchv1.JobSpec, path string) error {
	containers := spec.Template.Spec.Containers
	if len(containers) == 0 {
		return kerr.MalformedWorkloadf("%s.template.spec.containers must contain at least one container", path)
	}
	if containers[0].Image == "" {
		return kerr.MalformedWorkloadf("%s.template.spec.containers[0].image is required", path)
	}
	return nil
}

// fromUnstructured converts a free-form map into a typed Kubernetes object
// using apimachinery's unstructured converter, which only recognizes the
// camelCase JSON tags the Go structs declare. The wire format's canonical
// field name is snake_case (generate_name, binary_data, job_template, ...),
// with camelCase accepted as an alias, so every key is normalized to its
// camelCase form before conversion. A snake_case key takes precedence over
// a camelCase key of the same field if a body sends both.
func fromUnstructured(m map[string]interface{}, out interface{}) error {
	normalized, _ := normalizeKeys(m).(map[string]interface{})
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(normalized, out); err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	return nil
}

// normalizeKeys walks a decoded-JSON value, rewriting any snake_case map
// key to its camelCase form. Non-snake_case keys (already camelCase, or
// keys with no underscore at all) pass through recursion first so that a
// snake_case key present alongside its camelCase twin wins by being
// applied second.
func normalizeKeys(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			if !strings.Contains(k, "_") {
				out[k] = normalizeKeys(child)
			}
		}
		for k, child := range val {
			if strings.Contains(k, "_") {
				out[snakeToCamel(k)] = normalizeKeys(child)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeKeys(item)
		}
		return out
	default:
		return v
	}
}

func snakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}
