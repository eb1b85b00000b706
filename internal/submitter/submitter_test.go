package submitter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	ktesting "k8s.io/client-go/testing"

	"github.com/kbatch-dev/kbatch-proxy/internal/cluster"
	"github.com/kbatch-dev/kbatch-proxy/internal/patcher"
	"github.com/kbatch-dev/kbatch-proxy/internal/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newSubmission() *workload.Submission {
	return &workload.Submission{
		Kind: workload.KindJob,
		Job: &batchv1.Job{
			ObjectMeta: metav1.ObjectMeta{GenerateName: "t-"},
			Spec: batchv1.JobSpec{
				Template: corev1.PodTemplateSpec{
					Spec: corev1.PodSpec{
						Containers: []corev1.Container{
							{Name: "job", Image: "alpine", Env: []corev1.EnvVar{{Name: "SECRET", Value: "s3cr3t"}}},
						},
					},
				},
			},
		},
	}
}

func opts() Options {
	return Options{
		Patcher:         patcher.Options{Username: "alice", Namespace: "kbatch-alice", APIToken: "tok", TTLSecondsAfterFinished: 3600},
		CreateNamespace: true,
	}
}

func TestSubmitSimpleJob(t *testing.T) {
	client := cluster.NewFromClientset(fake.NewSimpleClientset())
	result, err := Submit(context.Background(), client, newSubmission(), opts(), testLogger())
	require.NoError(t, err)
	require.NotNil(t, result.Job)
	assert.Nil(t, result.ConfigMap)
	assert.NotEmpty(t, result.Secret.Name)

	jobs, err := client.ListJobs(context.Background(), "kbatch-alice")
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestSubmitWithCode(t *testing.T) {
	sub := newSubmission()
	sub.Code = &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{GenerateName: "t-"},
		BinaryData: map[string][]byte{"code": []byte("UEsDBBQA")},
	}

	client := cluster.NewFromClientset(fake.NewSimpleClientset())
	result, err := Submit(context.Background(), client, sub, opts(), testLogger())
	require.NoError(t, err)
	require.NotNil(t, result.ConfigMap)

	idx := patcher.CodeSourceVolumeIndex(&sub.Job.Spec.Template.Spec)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, result.ConfigMap.Name, sub.Job.Spec.Template.Spec.Volumes[idx].ConfigMap.Name)
}

func TestSubmitCompensatesOnJobCreateFailure(t *testing.T) {
	// P8: on injected failure, no residual Secret/ConfigMap.
	clientset := fake.NewSimpleClientset()
	clientset.PrependReactor("create", "jobs", func(action ktesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("injected failure")
	})
	client := cluster.NewFromClientset(clientset)

	sub := newSubmission()
	_, err := Submit(context.Background(), client, sub, opts(), testLogger())
	require.Error(t, err)

	secrets, err := clientset.CoreV1().Secrets("kbatch-alice").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, secrets.Items)
}

func TestSubmitCronJob(t *testing.T) {
	sub := &workload.Submission{
		Kind: workload.KindCronJob,
		CronJob: &batchv1.CronJob{
			ObjectMeta: metav1.ObjectMeta{GenerateName: "t-"},
			Spec: batchv1.CronJobSpec{
				Schedule: "*/5 * * * *",
				JobTemplate: batchv1.JobTemplateSpec{
					Spec: batchv1.JobSpec{
						Template: corev1.PodTemplateSpec{
							Spec: corev1.PodSpec{
								Containers: []corev1.Container{{Name: "job", Image: "alpine"}},
							},
						},
					},
				},
			},
		},
	}

	client := cluster.NewFromClientset(fake.NewSimpleClientset())
	result, err := Submit(context.Background(), client, sub, opts(), testLogger())
	require.NoError(t, err)
	require.NotNil(t, result.CronJob)

	meta := result.CronJob.Spec.JobTemplate.Spec.Template.ObjectMeta
	assert.Equal(t, "alice", meta.Annotations[patcher.UsernameAnnotationKey])
}
