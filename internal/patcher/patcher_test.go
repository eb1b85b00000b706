package patcher

import (
	"testing"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob() *batchv1.Job {
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{GenerateName: "t-"},
		Spec: batchv1.JobSpec{
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  "job",
							Image: "alpine",
							Env: []corev1.EnvVar{
								{Name: "SECRET_VALUE", Value: "hunter2"},
							},
						},
					},
				},
			},
		},
	}
}

func TestPatchIdentityStamp(t *testing.T) {
	// P5
	job := newJob()
	opts := Options{Username: "alice", Namespace: "kbatch-alice", APIToken: "tok", TTLSecondsAfterFinished: 3600}

	_, err := Patch(job, nil, opts)
	require.NoError(t, err)

	assert.Equal(t, "alice", job.ObjectMeta.Annotations[UsernameAnnotationKey])
	assert.Equal(t, "alice", job.Spec.Template.ObjectMeta.Annotations[UsernameAnnotationKey])
	assert.Equal(t, Escapism("alice"), job.ObjectMeta.Labels[UsernameAnnotationKey])
}

func TestPatchNamespaceStamping(t *testing.T) {
	job := newJob()
	opts := Options{Username: "alice", Namespace: "kbatch-alice", TTLSecondsAfterFinished: 3600}

	_, err := Patch(job, nil, opts)
	require.NoError(t, err)

	assert.Equal(t, "kbatch-alice", job.ObjectMeta.Namespace)
	assert.Equal(t, "kbatch-alice", job.Spec.Template.ObjectMeta.Namespace)
}

func TestPatchEnvInjection(t *testing.T) {
	job := newJob()
	opts := Options{
		Username:                "alice",
		Namespace:               "kbatch-alice",
		APIToken:                "tok-123",
		ExtraEnv:                map[string]string{"EXTRA": "value"},
		TTLSecondsAfterFinished: 3600,
	}

	_, err := Patch(job, nil, opts)
	require.NoError(t, err)

	env := job.Spec.Template.Spec.Containers[0].Env
	names := map[string]bool{}
	for _, e := range env {
		names[e.Name] = true
	}
	assert.True(t, names["EXTRA"])
	assert.True(t, names["JUPYTER_IMAGE"])
	assert.True(t, names["JUPYTER_IMAGE_SPEC"])
	assert.True(t, names["JUPYTERHUB_API_TOKEN"])
}

func TestPatchEnvToSecretExtraction(t *testing.T) {
	// P6: no container env entry carries a literal value after patching.
	job := newJob()
	opts := Options{Username: "alice", Namespace: "kbatch-alice", TTLSecondsAfterFinished: 3600}

	secret, err := Patch(job, nil, opts)
	require.NoError(t, err)

	for _, c := range job.Spec.Template.Spec.Containers {
		for _, e := range c.Env {
			assert.Empty(t, e.Value, "env %s should have no literal value", e.Name)
			assert.NotNil(t, e.ValueFrom, "env %s should reference the secret", e.Name)
		}
	}
	assert.NotEmpty(t, secret.Data)
}

func TestPatchPreservesValueFromEnv(t *testing.T) {
	job := newJob()
	job.Spec.Template.Spec.Containers[0].Env = append(job.Spec.Template.Spec.Containers[0].Env,
		corev1.EnvVar{
			Name: "FROM_FIELD",
			ValueFrom: &corev1.EnvVarSource{
				FieldRef: &corev1.ObjectFieldSelector{FieldPath: "metadata.name"},
			},
		})
	opts := Options{Username: "alice", Namespace: "kbatch-alice", TTLSecondsAfterFinished: 3600}

	_, err := Patch(job, nil, opts)
	require.NoError(t, err)

	for _, e := range job.Spec.Template.Spec.Containers[0].Env {
		if e.Name == "FROM_FIELD" {
			assert.NotNil(t, e.ValueFrom.FieldRef)
		}
	}
}

func TestPatchTTLDefault(t *testing.T) {
	job := newJob()
	opts := Options{Username: "alice", Namespace: "kbatch-alice", TTLSecondsAfterFinished: 3600}

	_, err := Patch(job, nil, opts)
	require.NoError(t, err)

	require.NotNil(t, job.Spec.TTLSecondsAfterFinished)
	assert.Equal(t, int32(3600), *job.Spec.TTLSecondsAfterFinished)
}

func TestPatchCodeVolumeWiring(t *testing.T) {
	// P7: code-source ConfigMap volume at index len-2.
	job := newJob()
	job.Spec.Template.Spec.Volumes = []corev1.Volume{
		{Name: "preexisting", VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}}},
	}
	code := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{GenerateName: "t-"},
		BinaryData: map[string][]byte{"code": []byte("UEsDBBQA")},
	}
	opts := Options{Username: "alice", Namespace: "kbatch-alice", TTLSecondsAfterFinished: 3600}

	_, err := Patch(job, code, opts)
	require.NoError(t, err)

	podSpec := &job.Spec.Template.Spec
	volumes := podSpec.Volumes
	idx := CodeSourceVolumeIndex(podSpec)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, codeSourceVolumeName, volumes[idx].Name)
	assert.Equal(t, codeVolumeName, volumes[idx+1].Name)

	require.Len(t, podSpec.InitContainers, 1)
	assert.Equal(t, "t--init", podSpec.InitContainers[0].Name)
	assert.Equal(t, codeInitImage, podSpec.InitContainers[0].Image)

	foundMount := false
	for _, m := range podSpec.Containers[0].VolumeMounts {
		if m.Name == codeVolumeName && m.MountPath == codeMountPath {
			foundMount = true
		}
	}
	assert.True(t, foundMount)
}

func TestEscapismReplacesIllegalCharacters(t *testing.T) {
	assert.Equal(t, "alice", Escapism("alice"))
	assert.NotEqual(t, "Alice", Escapism("Alice"))
	assert.Contains(t, Escapism("Alice@Example.COM"), "-")
}
