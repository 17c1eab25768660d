// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package types holds the immutable value types shared by the registry,
// watchers, and publishers: Record, Gateway, Route, Ingress, and the
// identifiers that join them.
package types

import "fmt"

// NoGatewayID is the synthetic gateway id used for records derived from an
// Ingress, which has no gateway of its own.
const NoGatewayID = "0.0.0.0"

// ID returns the "namespace/name" identifier used throughout the registry
// to key gateways, routes, and ingresses.
func ID(namespace, name string) string {
	return fmt.Sprintf("%s/%s", namespace, name)
}
