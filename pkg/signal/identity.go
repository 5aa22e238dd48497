package signal

// identitySep separates the identity components. None of the joined
// fields contain it: match IDs are provider tokens, types are a closed
// enum and timestamps are HH:MM:SS strings.
const identitySep = "-"

// IdentityOf derives the stable identity key of a signal from its
// match ID, market type and generation timestamp. Two signals are the
// same signal exactly when their identities are equal.
//
// The timestamp has second resolution, so two signals of the same type
// for the same match generated within one wall-clock second collide.
// The persisted format fixes this scheme; callers that need stronger
// uniqueness must order by FullTimestamp.
func IdentityOf(s Signal) string {
	return s.MatchID + identitySep + string(s.Type) + identitySep + s.Timestamp
}
