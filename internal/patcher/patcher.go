// Package patcher rewrites a parsed Job (or a CronJob's embedded job
// template) so it is safe to run on a user's behalf: identity stamping,
// namespace assignment, env injection, secret extraction, TTL, and code
// volume wiring.
package patcher

import (
	"fmt"
	"strings"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// UsernameAnnotationKey is stamped on both the outer and pod-template
// metadata of every patched workload (P5).
const UsernameAnnotationKey = "kbatch.jupyter.org/username"

const (
	codeSourceVolumeName = "code-source-volume"
	codeVolumeName       = "code-volume"
	codeZippedMountPath  = "/code-zipped"
	codeMountPath        = "/code"
	codeInitImage        = "busybox"
)

// Options carries the per-request parameters the Patcher needs beyond the
// workload itself.
type Options struct {
	// Username is the raw (unsanitized) caller identity.
	Username string
	// Namespace is NameMapper(Username); stamped onto the workload, pod
	// template, and code ConfigMap.
	Namespace string
	// APIToken is the caller's forwarded bearer token, injected as
	// JUPYTERHUB_API_TOKEN.
	APIToken string
	// ExtraEnv is appended to the first container's env on every submit.
	ExtraEnv map[string]string
	// TTLSecondsAfterFinished is stamped onto the job unless already set
	// by the user/template.
	TTLSecondsAfterFinished int32
}

// Patch rewrites job in place per §4.4's six operations and returns the
// Secret holding any literal env values that were extracted. code may be
// nil when no source archive was submitted.
func Patch(job *batchv1.Job, code *corev1.ConfigMap, opts Options) (*corev1.Secret, error) {
	stampIdentity(&job.ObjectMeta, opts.Username)
	stampIdentity(&job.Spec.Template.ObjectMeta, opts.Username)

	stampNamespace(&job.ObjectMeta, opts.Namespace)
	stampNamespace(&job.Spec.Template.ObjectMeta, opts.Namespace)
	if code != nil {
		stampNamespace(&code.ObjectMeta, opts.Namespace)
	}

	injectEnv(job, opts)

	secret := extractSecret(job, opts)

	ttl := opts.TTLSecondsAfterFinished
	if job.Spec.TTLSecondsAfterFinished == nil {
		job.Spec.TTLSecondsAfterFinished = &ttl
	}

	if code != nil {
		wireCodeVolume(job, code)
	}

	return secret, nil
}

func stampIdentity(meta *metav1.ObjectMeta, username string) {
	if meta.Annotations == nil {
		meta.Annotations = map[string]string{}
	}
	meta.Annotations[UsernameAnnotationKey] = username

	if meta.Labels == nil {
		meta.Labels = map[string]string{}
	}
	meta.Labels[UsernameAnnotationKey] = Escapism(username)
}

func stampNamespace(meta *metav1.ObjectMeta, namespace string) {
	meta.Namespace = namespace
}

func injectEnv(job *batchv1.Job, opts Options) {
	containers := job.Spec.Template.Spec.Containers
	if len(containers) == 0 {
		return
	}
	first := &containers[0]

	for name, value := range opts.ExtraEnv {
		first.Env = append(first.Env, corev1.EnvVar{Name: name, Value: value})
	}

	image := first.Image
	first.Env = append(first.Env,
		corev1.EnvVar{Name: "JUPYTER_IMAGE", Value: image},
		corev1.EnvVar{Name: "JUPYTER_IMAGE_SPEC", Value: image},
		corev1.EnvVar{Name: "JUPYTERHUB_API_TOKEN", Value: opts.APIToken},
	)
}

// extractSecret moves every literal env value, across every container in
// the pod, into a new Secret and replaces it with a secretKeyRef (P6). The
// Secret's metadata inherits the workload's name/generateName/labels.
func extractSecret(job *batchv1.Job, opts Options) *corev1.Secret {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: job.ObjectMeta.GenerateName,
			Name:         job.ObjectMeta.Name,
			Namespace:    opts.Namespace,
			Labels:       copyLabels(job.ObjectMeta.Labels),
		},
		Data: map[string][]byte{},
	}
	secretRefName := secret.GenerateName
	if secretRefName == "" {
		secretRefName = secret.Name
	}

	containers := job.Spec.Template.Spec.Containers
	for ci := range containers {
		env := containers[ci].Env
		for ei := range env {
			if env[ei].ValueFrom != nil {
				continue
			}
			key := secretKey(containers[ci].Name, env[ei].Name)
			secret.Data[key] = []byte(env[ei].Value)
			env[ei].Value = ""
			env[ei].ValueFrom = &corev1.EnvVarSource{
				SecretKeyRef: &corev1.SecretKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: secretRefName},
					Key:                  key,
				},
			}
		}
	}

	return secret
}

// secretKey namespaces env keys by container name so two containers with
// the same env var name don't collide in the shared Secret.
func secretKey(container, envName string) string {
	if container == "" {
		return envName
	}
	return fmt.Sprintf("%s-%s", container, envName)
}

func copyLabels(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// wireCodeVolume prepends a busybox init container that unzips the code
// ConfigMap into a shared emptyDir volume, and mounts that volume into
// both the init and primary containers (operation 6, P7).
//
// The code-source-volume entry is kept at index len-2 of the final
// volumes list: the Submitter later patches the ConfigMap's
// server-assigned name into that exact slot.
func wireCodeVolume(job *batchv1.Job, code *corev1.ConfigMap) {
	podSpec := &job.Spec.Template.Spec

	codeSourceVolume := corev1.Volume{
		Name: codeSourceVolumeName,
		VolumeSource: corev1.VolumeSource{
			ConfigMap: &corev1.ConfigMapVolumeSource{
				LocalObjectReference: corev1.LocalObjectReference{Name: code.GenerateName},
				Items: []corev1.KeyToPath{
					{Key: "code", Path: "code.b64"},
				},
			},
		},
	}
	emptyDirVolume := corev1.Volume{
		Name:         codeVolumeName,
		VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
	}

	// Any existing volumes come first; the two code volumes are appended
	// last, in order, so the ConfigMap volume lands at index len-2.
	podSpec.Volumes = append(podSpec.Volumes, codeSourceVolume, emptyDirVolume)

	base := job.ObjectMeta.GenerateName
	if base == "" {
		base = job.ObjectMeta.Name
	}
	initContainer := corev1.Container{
		Name:    base + "-init",
		Image:   codeInitImage,
		Command: []string{"/bin/sh", "-c"},
		Args:    []string{"unzip -d /code/ /code-zipped/code.b64"},
		VolumeMounts: []corev1.VolumeMount{
			{Name: codeSourceVolumeName, MountPath: codeZippedMountPath},
			{Name: codeVolumeName, MountPath: codeMountPath},
		},
	}
	podSpec.InitContainers = append([]corev1.Container{initContainer}, podSpec.InitContainers...)

	for i := range podSpec.Containers {
		podSpec.Containers[i].VolumeMounts = append(podSpec.Containers[i].VolumeMounts,
			corev1.VolumeMount{Name: codeVolumeName, MountPath: codeMountPath})
	}
}

// Escapism replaces every character outside [a-z0-9] with "-<hex>" so the
// result is a legal Kubernetes label value, mirroring the "escapism"
// transform of the original implementation.
func Escapism(s string) string {
	var b strings.Builder
	for _, r := range []byte(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteByte(r)
		} else {
			fmt.Fprintf(&b, "-%02x", r)
		}
	}
	return b.String()
}

// CodeSourceVolumeIndex returns the index the code-source ConfigMap volume
// occupies in podSpec.Volumes, per P7 (len-2 of the final volumes list).
func CodeSourceVolumeIndex(podSpec *corev1.PodSpec) int {
	return len(podSpec.Volumes) - 2
}
