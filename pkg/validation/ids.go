// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are routed
// into URL paths or outbound requests. Using these validators prevents
// injection through path segments and query parameters.
package validation

import (
	"fmt"
	"regexp"
)

// connectionIDPattern matches UUID v4 connection identifiers as issued by
// the stream handler.
var connectionIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// adcodePattern matches Amap administrative district codes: exactly six
// digits (e.g. 310000 for Shanghai).
var adcodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// ValidateConnectionID validates a connection id path parameter.
//
// Connection ids are server-issued UUIDs; anything else in the path segment
// is a client error and never reaches the registry lookup.
//
// Example:
//
//	if err := validation.ValidateConnectionID(connID); err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
//	    return
//	}
func ValidateConnectionID(id string) error {
	if id == "" {
		return fmt.Errorf("connection id cannot be empty")
	}
	if !connectionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid connection id format: %q", id)
	}
	return nil
}

// ValidateAdcode validates an Amap district code before it is placed in an
// outbound request URL.
func ValidateAdcode(adcode string) error {
	if adcode == "" {
		return fmt.Errorf("adcode cannot be empty")
	}
	if !adcodePattern.MatchString(adcode) {
		return fmt.Errorf("invalid adcode format: %q (must be 6 digits)", adcode)
	}
	return nil
}
