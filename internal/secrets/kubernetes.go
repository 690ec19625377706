package secrets

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"credbroker/pkg/logging"
)

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "default"

// NewKubernetesClient creates a controller-runtime client. An empty
// kubeconfig falls back to the standard lookup (KUBECONFIG, in-cluster,
// ~/.kube/config).
func NewKubernetesClient(kubeconfig string) (client.Client, error) {
	var (
		restConfig *rest.Config
		err        error
	)
	if kubeconfig != "" {
		restConfig, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	} else {
		restConfig, err = ctrl.GetConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load Kubernetes config: %w", err)
	}

	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	c, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return c, nil
}

// FromKubernetes reads secret material from a Secret.
func FromKubernetes(ctx context.Context, c client.Reader, namespace, name string) (*Material, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	var secret corev1.Secret
	if err := c.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, &secret); err != nil {
		return nil, fmt.Errorf("failed to read secret %s/%s: %w", namespace, name, err)
	}

	m, err := decode(
		string(secret.Data[KeyEncryptionKey]),
		string(secret.Data[KeyStateSecret]),
		string(secret.Data[KeyGoogleClientSecret]),
		string(secret.Data[KeySlackClientSecret]),
	)
	if err != nil {
		return nil, fmt.Errorf("secret %s/%s: %w", namespace, name, err)
	}

	logging.Info("Secrets", "Loaded secret material from secret %s/%s", namespace, name)
	return m, nil
}
