// Package gym holds the plain data records shared by every gymlog package.
//
// The package has no internal dependencies. Derived values such as a gym's
// level or a team's display name are pure functions over stored fields and
// are never persisted.
package gym
