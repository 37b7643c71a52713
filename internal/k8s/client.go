// Package k8s reports agent pods in a Kubernetes cluster as cloud agent
// records.
package k8s

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// Client is a wrapper around the Kubernetes clientset.
type Client struct {
	Clientset kubernetes.Interface
	Namespace string
}

// ErrNoKubeconfig is wrapped when neither in-cluster credentials nor a
// kubeconfig file are available.
var ErrNoKubeconfig = os.ErrNotExist

// NewClient creates a new Kubernetes client. It first attempts to use an
// in-cluster configuration, and falls back to a kubeconfig file if that fails.
// An explicit kubeconfig path wins over $KUBECONFIG and ~/.kube/config; an
// explicit namespace wins over the service-account namespace.
func NewClient(kubeconfig, namespace string) (*Client, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		path := resolveKubeconfig(kubeconfig)
		if path == "" {
			return nil, fmt.Errorf("kubeconfig not found: %w", ErrNoKubeconfig)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("kubeconfig not found at %s: %w", path, err)
		}

		config, err = clientcmd.BuildConfigFromFlags("", path)
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create k8s client: %w", err)
	}

	if namespace == "" {
		namespace = "default"
		if data, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
			namespace = strings.TrimSpace(string(data))
		}
	}

	return &Client{
		Clientset: clientset,
		Namespace: namespace,
	}, nil
}

func resolveKubeconfig(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("KUBECONFIG"); env != "" {
		return filepath.SplitList(env)[0]
	}
	if home := homedir.HomeDir(); home != "" {
		return filepath.Join(home, ".kube", "config")
	}
	return ""
}

// ListPods lists all pods in the client's namespace that match the given label selector.
func (c *Client) ListPods(ctx context.Context, labelSelector string) ([]corev1.Pod, error) {
	pods, err := c.Clientset.CoreV1().Pods(c.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list Kubernetes pods: %w", err)
	}
	return pods.Items, nil
}
