package recommend

import (
	"context"
	"strconv"
	"strings"

	"github.com/kailas-cloud/catalogsearch/internal/domain/search/terms"
)

// SystemInstruction is sent to an external responder ahead of the query.
const SystemInstruction = `Ты — помощник по подбору товаров в магазине. Отвечай кратко и по делу на русском.
Используй только переданный список товаров. Если товаров мало или нет — предложи уточнить запрос (бюджет, категория, бренд).`

// Reply texts.
const (
	emptyContext       = "Список товаров пуст."
	noResultsReply     = "По вашему запросу ничего не найдено. Попробуйте изменить формулировку или указать категорию и бюджет."
	repliesHeader      = "Вот подходящие варианты:\n\n"
	repliesFooter      = "\n\nЕсли нужно сузить выбор — укажите бюджет или бренд."
	fallbackNote       = "\n\nПоказаны товары по бюджету и смыслу запроса. Для точного подбора укажите категорию (например: витрина холодильная, шкаф холодильный)."
	noResultsQuestion  = "Уточните, пожалуйста: категория товара, бюджет или бренд?"
	fewResultsQuestion = "Найдено немного вариантов. Можете уточнить бюджет или требования?"
)

// Clarifying question thresholds.
const (
	fewResultsBelow      = 3
	minChildrenToClarify = 3
	maxChildrenShown     = 7
)

// FormatProductsContext renders one numbered line per product.
func FormatProductsContext(products []Product) string {
	if len(products) == 0 {
		return emptyContext
	}
	lines := make([]string, len(products))
	for i, p := range products {
		lines[i] = strconv.Itoa(i+1) + ". " + p.Name + " — цена " + formatPrice(p.Price) + " тг. Ссылка: " + p.URL
	}
	return strings.Join(lines, "\n")
}

// formatPrice prints v with no decimals and comma thousands separators.
func formatPrice(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}

	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

// LocalResponder builds the reply from a fixed template without any API call.
type LocalResponder struct{}

// Name identifies the responder in metrics.
func (LocalResponder) Name() string { return "local" }

// Reply never fails.
func (LocalResponder) Reply(_ context.Context, _, _, productsContext string) (string, error) {
	return templateReply(productsContext), nil
}

func templateReply(productsContext string) string {
	if productsContext == "" || strings.TrimSpace(productsContext) == emptyContext {
		return noResultsReply
	}
	return repliesHeader + productsContext + repliesFooter
}

// subcategoryQuestion lists up to maxChildrenShown names. No names, no question.
func subcategoryQuestion(categoryName string, childNames []string) string {
	if len(childNames) == 0 {
		return ""
	}
	shown := childNames[:min(len(childNames), maxChildrenShown)]
	parts := strings.Join(shown, ", ")
	if len(childNames) > maxChildrenShown {
		parts += " и др."
	}
	return "В категории «" + categoryName + "» есть: " + parts + ". Что именно вас интересует?"
}

// mentionsAny reports whether any significant word of any name occurs in the query.
func mentionsAny(query string, names []string) bool {
	q := strings.ToLower(query)
	for _, n := range names {
		for _, w := range terms.MentionWords(n) {
			if strings.Contains(q, w) {
				return true
			}
		}
	}
	return false
}
