package cluster

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/kbatch-dev/kbatch-proxy/internal/kerr"
)

const (
	defaultQPS     float32 = 20.0
	defaultBurst           = 30
	defaultTimeout         = 30 * time.Second
)

var foregroundPropagation = metav1.DeletePropagationForeground

// Config selects how ClientsetClient authenticates to the cluster.
type Config struct {
	// InCluster selects service-account authentication; otherwise a
	// kubeconfig (KubeconfigPath, or $KUBECONFIG, or ~/.kube/config) is
	// used.
	InCluster      bool
	KubeconfigPath string
	QPS            float32
	Burst          int
	Timeout        time.Duration
}

// ClientsetClient implements Client over a k8s.io/client-go typed
// clientset. Production code builds one with NewRealClient; tests build
// one over a fake clientset with NewFromClientset, exercising the same
// code path the live server runs.
type ClientsetClient struct {
	clientset kubernetes.Interface
}

// NewFromClientset wraps an existing clientset (e.g.
// k8s.io/client-go/kubernetes/fake.NewSimpleClientset() in tests).
func NewFromClientset(clientset kubernetes.Interface) *ClientsetClient {
	return &ClientsetClient{clientset: clientset}
}

// NewRealClient builds a ClientsetClient from cfg, selecting in-cluster or
// kubeconfig authentication against a live apiserver.
func NewRealClient(cfg Config) (*ClientsetClient, error) {
	if cfg.QPS == 0 {
		cfg.QPS = defaultQPS
	}
	if cfg.Burst == 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	restConfig, err := buildRestConfig(cfg)
	if err != nil {
		return nil, err
	}
	restConfig.QPS = cfg.QPS
	restConfig.Burst = cfg.Burst
	restConfig.Timeout = cfg.Timeout

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("build clientset: %w", err)
	}

	return NewFromClientset(clientset), nil
}

func buildRestConfig(cfg Config) (*rest.Config, error) {
	if cfg.InCluster {
		restConfig, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("in-cluster config: %w", err)
		}
		return restConfig, nil
	}

	path := cfg.KubeconfigPath
	if path == "" {
		path = os.Getenv("KUBECONFIG")
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, ".kube", "config")
		}
	}

	restConfig, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig %s: %w", path, err)
	}
	return restConfig, nil
}

func (c *ClientsetClient) EnsureNamespace(ctx context.Context, name string) (NamespaceResult, error) {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
	_, err := c.clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if err == nil {
		return NamespaceCreated, nil
	}
	if apierrors.IsAlreadyExists(err) {
		return NamespaceExisted, nil
	}
	return NamespaceExisted, classify(err, "ensure namespace", name)
}

func (c *ClientsetClient) CreateSecret(ctx context.Context, namespace string, secret *corev1.Secret) (*corev1.Secret, error) {
	created, err := c.clientset.CoreV1().Secrets(namespace).Create(ctx, secret, metav1.CreateOptions{})
	if err != nil {
		return nil, classify(err, "create secret", secret.Name)
	}
	return created, nil
}

func (c *ClientsetClient) DeleteSecret(ctx context.Context, namespace, name string) error {
	err := c.clientset.CoreV1().Secrets(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return classify(err, "delete secret", name)
	}
	return nil
}

func (c *ClientsetClient) PatchSecret(ctx context.Context, namespace, name string, patch []byte) error {
	_, err := c.clientset.CoreV1().Secrets(namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return classify(err, "patch secret", name)
	}
	return nil
}

func (c *ClientsetClient) CreateConfigMap(ctx context.Context, namespace string, cm *corev1.ConfigMap) (*corev1.ConfigMap, error) {
	created, err := c.clientset.CoreV1().ConfigMaps(namespace).Create(ctx, cm, metav1.CreateOptions{})
	if err != nil {
		return nil, classify(err, "create configmap", cm.Name)
	}
	return created, nil
}

func (c *ClientsetClient) DeleteConfigMap(ctx context.Context, namespace, name string) error {
	err := c.clientset.CoreV1().ConfigMaps(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return classify(err, "delete configmap", name)
	}
	return nil
}

func (c *ClientsetClient) PatchConfigMap(ctx context.Context, namespace, name string, patch []byte) error {
	_, err := c.clientset.CoreV1().ConfigMaps(namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return classify(err, "patch configmap", name)
	}
	return nil
}

func (c *ClientsetClient) CreateJob(ctx context.Context, namespace string, job *batchv1.Job) (*batchv1.Job, error) {
	created, err := c.clientset.BatchV1().Jobs(namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return nil, classify(err, "create job", job.Name)
	}
	return created, nil
}

func (c *ClientsetClient) ReadJob(ctx context.Context, namespace, name string) (*batchv1.Job, error) {
	job, err := c.clientset.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, classify(err, "read job", name)
	}
	return job, nil
}

func (c *ClientsetClient) ListJobs(ctx context.Context, namespace string) ([]batchv1.Job, error) {
	list, err := c.clientset.BatchV1().Jobs(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, classify(err, "list jobs", namespace)
	}
	return list.Items, nil
}

func (c *ClientsetClient) DeleteJob(ctx context.Context, namespace, name string) error {
	err := c.clientset.BatchV1().Jobs(namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &foregroundPropagation,
	})
	if err != nil {
		return classify(err, "delete job", name)
	}
	return nil
}

func (c *ClientsetClient) CreateCronJob(ctx context.Context, namespace string, cj *batchv1.CronJob) (*batchv1.CronJob, error) {
	created, err := c.clientset.BatchV1().CronJobs(namespace).Create(ctx, cj, metav1.CreateOptions{})
	if err != nil {
		return nil, classify(err, "create cronjob", cj.Name)
	}
	return created, nil
}

func (c *ClientsetClient) ReadCronJob(ctx context.Context, namespace, name string) (*batchv1.CronJob, error) {
	cj, err := c.clientset.BatchV1().CronJobs(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, classify(err, "read cronjob", name)
	}
	return cj, nil
}

func (c *ClientsetClient) ListCronJobs(ctx context.Context, namespace string) ([]batchv1.CronJob, error) {
	list, err := c.clientset.BatchV1().CronJobs(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, classify(err, "list cronjobs", namespace)
	}
	return list.Items, nil
}

func (c *ClientsetClient) DeleteCronJob(ctx context.Context, namespace, name string) error {
	err := c.clientset.BatchV1().CronJobs(namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &foregroundPropagation,
	})
	if err != nil {
		return classify(err, "delete cronjob", name)
	}
	return nil
}

func (c *ClientsetClient) ListPods(ctx context.Context, namespace string, opts ListOptions) ([]corev1.Pod, error) {
	list, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: opts.LabelSelector})
	if err != nil {
		return nil, classify(err, "list pods", namespace)
	}
	return list.Items, nil
}

func (c *ClientsetClient) ReadPod(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	pod, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, classify(err, "read pod", name)
	}
	return pod, nil
}

func (c *ClientsetClient) ReadPodLog(ctx context.Context, namespace, name string) (string, error) {
	stream, err := c.StreamPodLog(ctx, namespace, name)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return "", classify(err, "read pod log", name)
	}
	return string(data), nil
}

func (c *ClientsetClient) StreamPodLog(ctx context.Context, namespace, name string) (io.ReadCloser, error) {
	req := c.clientset.CoreV1().Pods(namespace).GetLogs(name, &corev1.PodLogOptions{})
	stream, err := req.Stream(ctx)
	if err != nil {
		return nil, classify(err, "stream pod log", name)
	}
	return stream, nil
}

// classify maps a client-go/apimachinery error onto the kbatch-proxy error
// taxonomy, preserving the original as the wrapped cause.
func classify(err error, op, name string) error {
	message := fmt.Sprintf("%s %s", op, name)
	switch {
	case apierrors.IsAlreadyExists(err):
		return kerr.Wrap(kerr.Conflict, message, err)
	case apierrors.IsNotFound(err):
		return kerr.Wrap(kerr.NotFound, message, err)
	case apierrors.IsForbidden(err), apierrors.IsUnauthorized(err):
		return kerr.Wrap(kerr.Forbidden, message, err)
	case apierrors.IsInvalid(err), apierrors.IsBadRequest(err):
		return kerr.Wrap(kerr.MalformedWorkload, message, err)
	case apierrors.IsServerTimeout(err), apierrors.IsServiceUnavailable(err), apierrors.IsTimeout(err), apierrors.IsTooManyRequests(err):
		return kerr.Wrap(kerr.UpstreamUnavailable, message, err)
	default:
		return kerr.Wrap(kerr.UpstreamUnavailable, message, err)
	}
}
