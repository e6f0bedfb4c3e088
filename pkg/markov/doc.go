/*
Package markov builds first-order word frequency models and uses them to
continue text.

A model maps every word of a corpus to the words observed directly after it
and how often each was seen. Models are built concurrently: the corpus is
split into contiguous blocks, every worker counts its block privately and the
partial counts are summed into the final model once all workers are done, so
the result never depends on the number of workers.

Generation is greedy. Starting from the last word of a prompt, the most
frequent successor that has not been used yet is appended, with ties going to
the alphabetically first word. A StopPolicy decides what happens when no such
successor exists.

Models can be evaluated with Loss, persisted in SQLite through a Store, and
exported or imported as JSON.
*/
package markov
