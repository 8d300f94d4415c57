// Package consumer implements the processing side of the pipeline.
//
// The runner polls the topic, decodes each wire-format message against
// its local reader schema (projecting writer schemas that have since
// evolved), hands the record to a handler, and commits the offset once
// the message is dealt with. A message that fails to decode or process
// never crashes the loop: the skip policy logs it, commits and moves
// on, while the halt policy stops the runner and leaves the offset for
// redelivery.
package consumer
