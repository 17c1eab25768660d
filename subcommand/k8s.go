// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package subcommand holds code shared across this binary's commands:
// the Kubernetes client bootstrap every command needs before it can
// build an internal/cluster/k8s.Source.
package subcommand

import (
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// K8SConfig builds a *rest.Config for talking to the cluster. When
// kubeconfig is non-empty it is loaded from that path (the out-of-cluster,
// development case); otherwise it falls back to the in-cluster config a
// pod's mounted service account provides.
func K8SConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	return rest.InClusterConfig()
}
