package scanning

// lineItemPrompt is the shared prompt used by all LLM providers for extracting line items
const lineItemPrompt = `You are analyzing a receipt, bill or handwritten list of expenses. Carefully read all text in the image and extract every priced line.

For each line item:
1. **Name**: the item or service as written, e.g. "Amul Milk 500ml" or "Bus ticket".
2. **Category**: one of Groceries, Clothing, Electronics, Medical, Transport or Misc. Leave it empty if unsure.
3. **Amount**: the price as a number. Discounts, refunds and returns are negative.

Also estimate how confident you are in the reading as a whole, from 0 to 100.

Return ONLY valid JSON in this exact format:
{
  "items": [
    {"name": "Item name", "category": "Groceries", "amount": 0.00}
  ],
  "confidence": 0
}

Important:
- Do not include subtotal, tax summary, grand total or change-due lines as items
- The amount must be a number (not a string) without currency symbols
- If the image is blurry, do your best to interpret it and lower the confidence
- If no priced lines are visible, return an empty items array
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// systemPrompt frames every extraction request
const systemPrompt = "You read line items from receipts, bills and handwritten expense lists. " +
	"Read every line and copy prices exactly as written."
