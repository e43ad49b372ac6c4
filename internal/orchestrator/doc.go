// Package orchestrator chains agent steps into the two forge pipelines.
//
// The package provides:
//   - Proposal assembly: requirements analysis, solution design, estimation
//     and compilation into one persisted proposal (Assembler)
//   - Post-approval provisioning: environment, backups and initial code for
//     the project an approved proposal spawns (Provisioner)
//   - Forge: the context object the CLI and HTTP server call into
//
// Degraded step results flow forward; a Failed step aborts assembly into a
// proposal built from ProposalDefaults, and a failed critical provisioning
// step puts the project on hold. Neither pipeline rolls back completed
// steps.
//
// Example usage:
//
//	forge, err := orchestrator.New(orchestrator.RequiredConfig{
//		Store:   db,
//		Ledger:  ledger.New(db, log),
//		Runners: factory.Runners(),
//	}, orchestrator.WithLogger(log))
//	proposal, err := forge.Submit(ctx, requirements)
//	project, err := forge.Approve(ctx, proposal.ID)
package orchestrator
