// Package diff classifies the change between a gym's persisted projection and
// a new observation into an ordered list of log events.
//
// Rules are evaluated in a fixed order and are independent, so one diff may
// emit several events:
//
//  1. BattleStarted when the observation is in battle.
//  2. BattleEnded when the projection was in battle and the observation is not.
//  3. PointsGained when the team is unchanged and points rose.
//  4. PointsLost when the team is unchanged and points fell.
//  5. TeamChanged when the team differs; point deltas are not reported then.
//  6. MemberJoined/MemberLeft, joins before leaves, when the team differs or
//     the occupant count changed.
//  7. NoDetectedChange when nothing above fired and heartbeats are enabled.
//
// A gym with no projection is new: nothing is emitted for its first
// observation.
package diff
