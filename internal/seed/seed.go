// Package seed provides the built-in question bank used when the store is
// empty. Correct choices are committed through the integrity verifier at
// build time, so no plaintext answer index ever reaches the store.
package seed

import (
	"context"

	"github.com/sirupsen/logrus"

	"brainbolt/internal/app"
	"brainbolt/internal/cache"
	"brainbolt/internal/domain"
	"brainbolt/internal/integrity"
)

// Seed inserts the built-in questions unless the bank already has content,
// then flushes the question-pool cache so fresh pools are visible at once.
func Seed(ctx context.Context, store app.Store, caches *cache.Layers, verifier *integrity.Verifier) error {
	count, err := store.CountQuestions(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		logrus.WithField("questions", count).Info("question bank already seeded, skipping")
		return nil
	}

	questions := Questions(verifier)
	if err := store.InsertQuestions(ctx, questions); err != nil {
		return err
	}
	if caches != nil {
		caches.QuestionPool.Flush()
	}
	logrus.WithField("questions", len(questions)).Info("seeded question bank")
	return nil
}

// Questions builds the full seed set, at least three per difficulty level.
func Questions(verifier *integrity.Verifier) []domain.Question {
	q := func(difficulty int, prompt string, choices [4]string, correct int, tags ...string) domain.Question {
		return domain.Question{
			Difficulty:        difficulty,
			Prompt:            prompt,
			Choices:           choices[:],
			CorrectAnswerHash: verifier.Hash(correct),
			Tags:              tags,
		}
	}

	return []domain.Question{
		q(1, "What does HTML stand for?", [4]string{"Hyper Text Markup Language", "High Tech Modern Language", "Home Tool Markup Language", "Hyperlink Text Mode Language"}, 0, "web-development", "basics"),
		q(1, "Which planet is closest to the Sun?", [4]string{"Venus", "Mercury", "Earth", "Mars"}, 1, "science", "astronomy"),
		q(1, "What is 15 + 27?", [4]string{"40", "42", "44", "38"}, 1, "mathematics", "arithmetic"),
		q(1, "What is the capital of France?", [4]string{"London", "Berlin", "Paris", "Madrid"}, 2, "geography"),

		q(2, "What does CSS stand for?", [4]string{"Creative Style Sheets", "Cascading Style Sheets", "Computer Style Syntax", "Colorful Style Sheets"}, 1, "web-development", "basics"),
		q(2, "How many continents are there on Earth?", [4]string{"5", "6", "7", "8"}, 2, "geography"),
		q(2, "Which gas do plants absorb from the atmosphere?", [4]string{"Oxygen", "Carbon Dioxide", "Nitrogen", "Hydrogen"}, 1, "science", "biology"),
		q(2, "Who wrote Romeo and Juliet?", [4]string{"Charles Dickens", "William Shakespeare", "Jane Austen", "Mark Twain"}, 1, "literature"),

		q(3, "What is the time complexity of accessing an array element by index?", [4]string{"O(n)", "O(log n)", "O(1)", "O(n^2)"}, 2, "computer-science", "data-structures"),
		q(3, "What is the chemical symbol for Gold?", [4]string{"Go", "Gd", "Au", "Ag"}, 2, "science", "chemistry"),
		q(3, "Which data structure uses FIFO ordering?", [4]string{"Stack", "Queue", "Tree", "Graph"}, 1, "computer-science", "data-structures"),
		q(3, "What is the longest river in the world?", [4]string{"Amazon", "Mississippi", "Nile", "Yangtze"}, 2, "geography"),

		q(4, "Which sorting algorithm has the best average-case time complexity?", [4]string{"Bubble Sort", "Merge Sort", "Selection Sort", "Insertion Sort"}, 1, "computer-science", "algorithms"),
		q(4, "What is the derivative of x^3?", [4]string{"x^2", "3x^2", "3x", "2x^3"}, 1, "mathematics", "calculus"),
		q(4, "Which protocol is used for secure web communication?", [4]string{"HTTP", "FTP", "HTTPS", "SMTP"}, 2, "technology", "networking"),
		q(4, "In which year did World War II end?", [4]string{"1943", "1944", "1945", "1946"}, 2, "history"),

		q(5, "What is the worst-case time complexity of QuickSort?", [4]string{"O(n log n)", "O(n^2)", "O(n)", "O(log n)"}, 1, "computer-science", "algorithms"),
		q(5, "What is the integral of 1/x?", [4]string{"x", "ln|x| + C", "1/x^2", "e^x"}, 1, "mathematics", "calculus"),
		q(5, "Which layer of the OSI model handles routing?", [4]string{"Data Link", "Transport", "Network", "Session"}, 2, "technology", "networking"),
		q(5, "What is the capital of Kazakhstan?", [4]string{"Almaty", "Astana", "Bishkek", "Tashkent"}, 1, "geography"),

		q(6, "What is the time complexity of finding an element in a balanced BST?", [4]string{"O(n)", "O(log n)", "O(n log n)", "O(1)"}, 1, "computer-science", "data-structures"),
		q(6, "What is Euler's number (e) approximately?", [4]string{"2.718", "3.141", "1.618", "2.236"}, 0, "mathematics"),
		q(6, "Which design pattern ensures only one instance of a class?", [4]string{"Factory", "Observer", "Singleton", "Strategy"}, 2, "software-engineering", "design-patterns"),
		q(6, "Which philosopher wrote 'The Republic'?", [4]string{"Aristotle", "Socrates", "Plato", "Epicurus"}, 2, "philosophy"),

		q(7, "What is the amortized time complexity of inserting into a dynamic array?", [4]string{"O(n)", "O(1)", "O(log n)", "O(n^2)"}, 1, "computer-science", "data-structures"),
		q(7, "In the CAP theorem, which properties can a distributed system guarantee?", [4]string{"Consistency and Availability always", "Any two of three", "Only Partition Tolerance", "All three always"}, 1, "computer-science", "distributed-systems"),
		q(7, "What is the determinant of a 2x2 identity matrix?", [4]string{"0", "1", "2", "Undefined"}, 1, "mathematics", "linear-algebra"),
		q(7, "Which language is considered the first high-level programming language?", [4]string{"COBOL", "Fortran", "BASIC", "Lisp"}, 1, "computer-science", "history"),

		q(8, "What is the time complexity of Dijkstra's algorithm with a binary heap?", [4]string{"O(V^2)", "O(E log V)", "O(V + E)", "O(V log V)"}, 1, "computer-science", "algorithms"),
		q(8, "What is the Riemann Hypothesis concerned with?", [4]string{"Prime number distribution", "P vs NP", "Fermat's Last Theorem", "Goldbach's conjecture"}, 0, "mathematics"),
		q(8, "What consistency model does the Raft consensus algorithm provide?", [4]string{"Eventual", "Strong", "Causal", "Read-your-writes"}, 1, "distributed-systems"),
		q(8, "Which physicist proposed the many-worlds interpretation?", [4]string{"Bohr", "Feynman", "Everett", "Dirac"}, 2, "science", "physics"),

		q(9, "What is the space complexity of Tarjan's strongly connected components algorithm?", [4]string{"O(V + E)", "O(V^2)", "O(E log V)", "O(V * E)"}, 0, "computer-science", "algorithms"),
		q(9, "What does the Curry-Howard correspondence relate?", [4]string{"Functions and sets", "Proofs and programs", "Types and categories", "Logic and algebra"}, 1, "computer-science", "theory"),
		q(9, "What is a Merkle tree used for?", [4]string{"Sorting data", "Efficient data verification", "Graph traversal", "Memory allocation"}, 1, "cryptography"),
		q(9, "What is the significance of Godel's incompleteness theorems?", [4]string{"Mathematics is complete", "Some truths cannot be proven within a system", "All axioms are consistent", "Logic is decidable"}, 1, "mathematics", "logic"),

		q(10, "What is the complexity class of determining if a graph is 3-colorable?", [4]string{"P", "NP-complete", "NP-hard but not NP-complete", "PSPACE"}, 1, "computer-science", "complexity-theory"),
		q(10, "What is a ZK-SNARK?", [4]string{"A sorting algorithm", "A zero-knowledge succinct proof", "A cryptographic hash", "A consensus protocol"}, 1, "cryptography"),
		q(10, "What is the Halting Problem?", [4]string{"Determining if a program will halt", "Finding the shortest path", "Optimizing memory usage", "Scheduling processes"}, 0, "computer-science", "theory"),
		q(10, "What does the P vs NP problem ask?", [4]string{"Whether polynomial algorithms exist for all problems", "Whether verifiable problems are also solvable in polynomial time", "Whether all NP problems are unsolvable", "Whether P is empty"}, 1, "computer-science", "complexity-theory"),
	}
}
