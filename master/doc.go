// Package master provides the master program of the cell suppression problem.
//
// # Definition
//
// The master program selects which cells of a table are suppressed. It has one binary variable per cell,
// true when the cell is suppressed, and minimizes the sum of the weights of the suppressed cells.
// Sensitive cells are always suppressed, structural zeros never are.
//
// Protection of the sensitive cells is not expressed directly: it is approximated by a pool of linear
// constraints, called cuts, that are added along the resolution, either permanently (see Master.AddCut)
// or only for the current search (see Lazy). Initially, the pool can be seeded with static constraints
// that only depend on the magnitudes of the cells.
//
// # Resolution
//
// The program is solved as a pseudo-boolean optimization problem by gophersat. Cuts have real coefficients,
// so they are rescaled and rounded up before being handed to the PB solver, which yields a relaxation
// of the original cut. The search is a linear descent: every time a model is found, it is proposed
// to the IncumbentHandler, if any, which can reject it by adding lazy cuts. Accepted models become the incumbent,
// and the search goes on for a strictly cheaper model, until none exists, a time limit is reached,
// or the incumbent is close enough to the lower bound.
package master
