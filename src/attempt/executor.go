// Copyright (c) 2026 Khaled Abbas
//
// This source code is licensed under the Business Source License 1.1.
//
// Change Date: 4 years after the first public release of this version.
// Change License: MIT
//
// On the Change Date, this version of the code automatically converts
// to the MIT License. Prior to that date, use is subject to the
// Additional Use Grant. See the LICENSE file for details.

// Package attempt performs single login attempts.
package attempt

import (
	"context"

	"credprobe/src/model"
)

// Executor tests one password for one user against address.
//
// Implementations must always return an outcome: transport failures are
// reported as Succeeded == false, never as an error.
type Executor interface {
	Attempt(ctx context.Context, address, user, password string) model.AttemptOutcome
}

// Func adapts a plain function to Executor.
type Func func(ctx context.Context, address, user, password string) model.AttemptOutcome

func (f Func) Attempt(ctx context.Context, address, user, password string) model.AttemptOutcome {
	return f(ctx, address, user, password)
}
