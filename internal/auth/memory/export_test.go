// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package memory

// Len returns the number of stored users.
func (d *UserDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}
