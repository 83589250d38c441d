// Package authz is the voting authorization engine.
//
// Independent [Module] values each render a [Vote] (Grant, Deny, or Abstain)
// on one [Action] for one identity [Context]. The [Engine] only consults
// modules that support the action, then hands the name-to-vote map to a
// swappable [Strategy]. [DenyOverrides] is the default: any Deny denies, any
// Grant otherwise grants, and no votes at all deny.
//
// # Architecture boundaries
//
// Decisions are synchronous computations over data the modules already
// hold or fetch through their own collaborators. The engine keeps no state
// between decisions.
//
// # What this package must NOT do
//
//   - Import goShield or session.
//   - Cache decisions.
//   - Treat a module error as a vote.
package authz
