// Package submitter performs the three-phase transactional creation of a
// ResourceGroup (Secret → optional ConfigMap → Job/CronJob → owner-reference
// back-patch), with best-effort compensating deletes on failure.
package submitter

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/kbatch-dev/kbatch-proxy/internal/cluster"
	"github.com/kbatch-dev/kbatch-proxy/internal/logging"
	"github.com/kbatch-dev/kbatch-proxy/internal/patcher"
	"github.com/kbatch-dev/kbatch-proxy/internal/workload"
)

// compensationTimeout bounds a best-effort compensating delete; it runs to
// completion even if the inbound request context has already been
// cancelled, per §5.
const compensationTimeout = 5 * time.Second

// Result is the submitted, server-assigned ResourceGroup.
type Result struct {
	Kind      workload.Kind
	Job       *batchv1.Job
	CronJob   *batchv1.CronJob
	Secret    *corev1.Secret
	ConfigMap *corev1.ConfigMap
}

// Options bundles the patcher options with the submission-level policy
// knobs (kbatch_create_user_namespace, spec.md §4.9).
type Options struct {
	Patcher         patcher.Options
	CreateNamespace bool
}

// Submit patches and creates sub's workload against client, following
// §4.5's five phases.
func Submit(ctx context.Context, client cluster.Client, sub *workload.Submission, opts Options, logger *slog.Logger) (*Result, error) {
	logger = logging.WithOperation(logger, "submit")

	targetJob, rewrap := unwrapTarget(sub)

	secret, err := patcher.Patch(targetJob, sub.Code, opts.Patcher)
	if err != nil {
		return nil, err
	}
	rewrap(targetJob)

	namespace := opts.Patcher.Namespace

	// Phase 1: ensure namespace, unless the administrator has disabled
	// auto-creation (the namespace is then expected to pre-exist).
	if opts.CreateNamespace {
		if _, err := client.EnsureNamespace(ctx, namespace); err != nil {
			return nil, err
		}
	}

	// Phase 2: create Secret, then rewrite any secretKeyRef pointing at
	// its pre-submission generateName to the server-assigned name.
	localSecretName := secret.GenerateName
	if localSecretName == "" {
		localSecretName = secret.Name
	}
	createdSecret, err := client.CreateSecret(ctx, namespace, secret)
	if err != nil {
		return nil, err
	}
	rewriteSecretRefs(targetJob, localSecretName, createdSecret.Name)
	rewrap(targetJob)

	result := &Result{Kind: sub.Kind, Secret: createdSecret}

	// Phase 3: create ConfigMap, if code was supplied.
	var createdConfigMap *corev1.ConfigMap
	if sub.Code != nil {
		createdConfigMap, err = client.CreateConfigMap(ctx, namespace, sub.Code)
		if err != nil {
			compensate(logger, client, namespace, createdSecret.Name, "")
			return nil, err
		}
		idx := patcher.CodeSourceVolumeIndex(&targetJob.Spec.Template.Spec)
		if idx >= 0 && idx < len(targetJob.Spec.Template.Spec.Volumes) {
			targetJob.Spec.Template.Spec.Volumes[idx].ConfigMap.Name = createdConfigMap.Name
		}
		rewrap(targetJob)
		result.ConfigMap = createdConfigMap
	}

	// Phase 4: create the Job or CronJob.
	var ownerKind, ownerName string
	var ownerUID string
	switch sub.Kind {
	case workload.KindJob:
		created, err := client.CreateJob(ctx, namespace, sub.Job)
		if err != nil {
			compensate(logger, client, namespace, createdSecret.Name, configMapName(createdConfigMap))
			return nil, err
		}
		result.Job = created
		ownerKind, ownerName, ownerUID = "Job", created.Name, string(created.UID)
	case workload.KindCronJob:
		created, err := client.CreateCronJob(ctx, namespace, sub.CronJob)
		if err != nil {
			compensate(logger, client, namespace, createdSecret.Name, configMapName(createdConfigMap))
			return nil, err
		}
		result.CronJob = created
		ownerKind, ownerName, ownerUID = "CronJob", created.Name, string(created.UID)
	}

	// Phase 5: back-patch ownership. Best effort: failures are logged,
	// not fatal.
	backPatchOwner(ctx, client, logger, namespace, createdSecret.Name, ownerKind, ownerName, ownerUID, false)
	if createdConfigMap != nil {
		backPatchOwner(ctx, client, logger, namespace, createdConfigMap.Name, ownerKind, ownerName, ownerUID, true)
	}

	return result, nil
}

// unwrapTarget returns the Job that Patcher should operate on, and a
// closure that writes the patched Job back into sub — transparently
// handling the CronJob case where the real patch target is the embedded
// job template (§9).
func unwrapTarget(sub *workload.Submission) (*batchv1.Job, func(*batchv1.Job)) {
	if sub.Kind == workload.KindCronJob {
		synthetic := &batchv1.Job{
			ObjectMeta: sub.CronJob.Spec.JobTemplate.ObjectMeta,
			Spec:       sub.CronJob.Spec.JobTemplate.Spec,
		}
		// The CronJob's own metadata carries the generateName the init
		// container and Secret names are derived from.
		synthetic.ObjectMeta.GenerateName = sub.CronJob.ObjectMeta.GenerateName
		synthetic.ObjectMeta.Name = sub.CronJob.ObjectMeta.Name

		return synthetic, func(patched *batchv1.Job) {
			sub.CronJob.Spec.JobTemplate.ObjectMeta = patched.ObjectMeta
			sub.CronJob.Spec.JobTemplate.Spec = patched.Spec
		}
	}

	return sub.Job, func(patched *batchv1.Job) {
		sub.Job = patched
	}
}

func rewriteSecretRefs(job *batchv1.Job, from, to string) {
	for ci := range job.Spec.Template.Spec.Containers {
		env := job.Spec.Template.Spec.Containers[ci].Env
		for ei := range env {
			ref := env[ei].ValueFrom
			if ref != nil && ref.SecretKeyRef != nil && ref.SecretKeyRef.Name == from {
				ref.SecretKeyRef.Name = to
			}
		}
	}
}

func configMapName(cm *corev1.ConfigMap) string {
	if cm == nil {
		return ""
	}
	return cm.Name
}

// compensate issues best-effort deletes of the Secret and (if any)
// ConfigMap created so far, concurrently, then returns — the Submitter's
// own unwinding path on a later-phase failure (P8).
func compensate(logger *slog.Logger, client cluster.Client, namespace, secretName, configMapName string) {
	ctx, cancel := context.WithTimeout(context.Background(), compensationTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := client.DeleteSecret(gctx, namespace, secretName); err != nil {
			logger.Error("compensating delete failed",
				logging.ResourceType("secret"), logging.ResourceName(secretName), logging.SanitizedErr(err))
		}
		return nil
	})
	if configMapName != "" {
		g.Go(func() error {
			if err := client.DeleteConfigMap(gctx, namespace, configMapName); err != nil {
				logger.Error("compensating delete failed",
					logging.ResourceType("configmap"), logging.ResourceName(configMapName), logging.SanitizedErr(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func backPatchOwner(ctx context.Context, client cluster.Client, logger *slog.Logger, namespace, name, ownerKind, ownerName, ownerUID string, isConfigMap bool) {
	patch, err := json.Marshal(map[string]interface{}{
		"metadata": map[string]interface{}{
			"ownerReferences": []map[string]interface{}{
				{
					"apiVersion": "batch/v1",
					"kind":       ownerKind,
					"name":       ownerName,
					"uid":        ownerUID,
				},
			},
		},
	})
	if err != nil {
		logger.Error("marshal owner-reference patch", logging.Err(err))
		return
	}

	resourceType := "secret"
	var patchErr error
	if isConfigMap {
		resourceType = "configmap"
		patchErr = client.PatchConfigMap(ctx, namespace, name, patch)
	} else {
		patchErr = client.PatchSecret(ctx, namespace, name, patch)
	}
	if patchErr != nil {
		logger.Error("owner back-patch failed",
			logging.ResourceType(resourceType), logging.ResourceName(name), logging.SanitizedErr(patchErr))
	}
}
