// Package ir provides the value and record types shared by every autosync
// package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal, which keeps it the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - Field values are a closed set (IRValue): null, string, int, bool,
//     array, object. No floats, so projections serialize deterministically.
//   - Records carry their entity type name, primary key and field values;
//     they know nothing about synchronization.
//   - All JSON tags use snake_case.
package ir
