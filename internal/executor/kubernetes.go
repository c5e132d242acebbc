package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// KubernetesConfig holds configuration for the Kubernetes execution layer.
type KubernetesConfig struct {
	// Namespace where task pods will be created
	Namespace string
	// ServiceAccount for task pods (optional)
	ServiceAccount string
}

// KubernetesExecutor implements the ExecutionLayer interface by running each
// task run as a Kubernetes pod named after its task ID.
type KubernetesExecutor struct {
	clientset kubernetes.Interface
	config    KubernetesConfig
	logger    *slog.Logger
}

// homeDir returns the user's home directory.
func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	return os.Getenv("USERPROFILE") // Windows
}

// NewKubernetesExecutor creates a Kubernetes-based execution layer.
// Tries in-cluster configuration first, falls back to kubeconfig for local development.
func NewKubernetesExecutor(cfg KubernetesConfig, logger *slog.Logger) (*KubernetesExecutor, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		kubeconfig := filepath.Join(homeDir(), ".kube", "config")
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build kubernetes config: %w", err)
		}
		logger.Info("using kubeconfig", "path", kubeconfig)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}

	return &KubernetesExecutor{clientset: clientset, config: cfg, logger: logger}, nil
}

// NewKubernetesExecutorWithClient wires an existing clientset, used in tests
// with the fake clientset.
func NewKubernetesExecutorWithClient(clientset kubernetes.Interface, cfg KubernetesConfig, logger *slog.Logger) *KubernetesExecutor {
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	return &KubernetesExecutor{clientset: clientset, config: cfg, logger: logger}
}

// Launch implements ExecutionLayer by creating a pod for the run.
func (k *KubernetesExecutor) Launch(ctx context.Context, req LaunchRequest) (*Placement, error) {
	var ports []corev1.ContainerPort
	allocated := make(map[string]uint32, len(req.Config.Ports))
	for _, p := range req.Config.Ports {
		if p.Value == 0 {
			// Dynamic allocation is the port-allocation subsystem's
			// concern; pods get named ports only when pinned.
			continue
		}
		ports = append(ports, corev1.ContainerPort{
			Name:          p.Name,
			ContainerPort: int32(p.Value),
		})
		allocated[p.Name] = p.Value
	}

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      podName(req.TaskID),
			Namespace: k.config.Namespace,
			Labels: map[string]string{
				"app.kubernetes.io/managed-by": "taskplane",
				"taskplane.io/job-id":          req.JobID.String(),
			},
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:    "task",
					Image:   req.Config.Image,
					Command: req.Config.Command,
					Ports:   ports,
				},
			},
		},
	}
	if k.config.ServiceAccount != "" {
		pod.Spec.ServiceAccountName = k.config.ServiceAccount
	}

	created, err := k.clientset.CoreV1().Pods(k.config.Namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create pod for task %s: %w", req.TaskID, err)
	}

	k.logger.Info("created task pod", "pod", created.Name, "namespace", k.config.Namespace)

	return &Placement{
		Hostname: created.Spec.NodeName,
		AgentID:  created.Name,
		Ports:    allocated,
	}, nil
}

// Kill implements ExecutionLayer by deleting the run's pod.
func (k *KubernetesExecutor) Kill(ctx context.Context, taskID string) error {
	name := podName(taskID)
	err := k.clientset.CoreV1().Pods(k.config.Namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("no pod known for task %s", taskID)
	}
	return err
}

// ListSandboxFiles implements ExecutionLayer. Kubernetes pods do not expose
// a browsable sandbox through the API, so the listing carries the pod's log
// endpoint path on its node.
func (k *KubernetesExecutor) ListSandboxFiles(ctx context.Context, taskID string) (*SandboxListing, error) {
	name := podName(taskID)
	pod, err := k.clientset.CoreV1().Pods(k.config.Namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get pod for task %s: %w", taskID, err)
	}

	return &SandboxListing{
		Hostname: pod.Spec.NodeName,
		Paths:    []string{fmt.Sprintf("/var/log/pods/%s_%s", k.config.Namespace, name)},
	}, nil
}

// podName derives a DNS-safe pod name from the task ID.
func podName(taskID string) string {
	return "taskplane-" + taskID
}
